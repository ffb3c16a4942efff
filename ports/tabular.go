package ports

import "gordd/domain/dataset"

// DatasetWriter exports a dataset to a flat tabular file. The on-disk schema
// is identical to what DatasetReader accepts: generated and loaded data share
// one shape.
type DatasetWriter interface {
	Write(path string, ds *dataset.Dataset) error
}

// DatasetReader loads a previously exported dataset.
type DatasetReader interface {
	Read(path string) (*dataset.Dataset, error)
}
