// Package sample declares a record type and its container, used by the
// command line demo and tests.
package sample

import (
	"encoding/xml"

	"github.com/maruel/xmldb/xmldb"
)

// Sample is a record holding a single text field.
type Sample struct {
	xmldb.RecordBase
	SomeData string `xml:"SomeData" json:"some_data"`
}

// SampleDatabase is the container of Sample records.
type SampleDatabase struct {
	XMLName xml.Name `xml:"SampleDatabase" json:"-"`
	xmldb.ContainerBase
	TestObjects []*Sample `xml:"TestObjects>Sample" json:"test_objects"`
}
