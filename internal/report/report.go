// Package report renders analysis results as text, JSON, CSV and SVG.
package report

import (
	"github.com/autobrr/go-bitrate/internal/analysis"
	"github.com/autobrr/go-bitrate/internal/probe"
)

// Report is the analysis of one file together with its stream metadata.
type Report struct {
	Ref    string
	Info   probe.StreamInfo
	Result analysis.Result
}

type Field struct {
	Name  string
	Value string
}

type Section struct {
	Title  string
	Fields []Field
}

func (s *Section) add(name, value string) {
	if value == "" {
		return
	}
	s.Fields = append(s.Fields, Field{Name: name, Value: value})
}
