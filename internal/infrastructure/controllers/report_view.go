package controllers

import (
	"fmt"
	"io"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/rios0rios0/pinbump/internal/domain/entities"
)

type reportView struct {
	Name        string       `yaml:"name"`
	Summary     summaryView  `yaml:"summary"`
	Records     []recordView `yaml:"records"`
	Diagnostics []string     `yaml:"diagnostics,omitempty"`
}

type summaryView struct {
	Updates  int `yaml:"updates"`
	UpToDate int `yaml:"up-to-date"`
	Failed   int `yaml:"failed"`
}

type recordView struct {
	Name              string     `yaml:"name"`
	Uses              string     `yaml:"uses"`
	File              string     `yaml:"file,omitempty"`
	Line              int        `yaml:"line,omitempty"`
	Job               string     `yaml:"job,omitempty"`
	Kind              string     `yaml:"kind"`
	Current           string     `yaml:"current"`
	Latest            string     `yaml:"latest,omitempty"`
	LatestHash        string     `yaml:"latest-hash,omitempty"`
	PublishedAt       *time.Time `yaml:"published-at,omitempty"`
	Severity          string     `yaml:"severity"`
	Breaking          bool       `yaml:"breaking"`
	Status            string     `yaml:"status"`
	SelectedByDefault bool       `yaml:"selected-by-default"`
	Error             string     `yaml:"error,omitempty"`
}

func newReportView(result entities.ScanResult) reportView {
	summary := result.Summary()
	view := reportView{
		Name: result.Name,
		Summary: summaryView{
			Updates:  summary.Updates,
			UpToDate: summary.UpToDate,
			Failed:   summary.Failed,
		},
		Records: make([]recordView, 0, len(result.Records)),
	}

	for _, record := range result.Records {
		ref := record.Reference
		row := recordView{
			Name:              ref.DisplayName(),
			Uses:              ref.Uses(),
			File:              ref.Provenance.File,
			Line:              ref.Provenance.Line,
			Job:               ref.Provenance.Job,
			Kind:              string(record.Kind),
			Current:           record.DisplayVersion,
			PublishedAt:       record.PublishedAt,
			Severity:          string(record.Severity),
			Breaking:          record.IsBreaking,
			Status:            string(record.Status),
			SelectedByDefault: record.SelectedByDefault(),
		}
		if record.LatestVersion != nil {
			row.Latest = *record.LatestVersion
		}
		if record.LatestHash != nil {
			row.LatestHash = *record.LatestHash
		}
		if record.Err != nil {
			row.Error = record.Err.Error()
		}
		view.Records = append(view.Records, row)
	}

	for _, diagnostic := range result.Diagnostics {
		view.Diagnostics = append(view.Diagnostics, diagnostic.String())
	}
	return view
}

func writeYAML(out io.Writer, result entities.ScanResult) error {
	encoder := yaml.NewEncoder(out)
	encoder.SetIndent(2)
	if err := encoder.Encode(newReportView(result)); err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}
	return encoder.Close()
}

func writeText(out io.Writer, result entities.ScanResult) error {
	for _, record := range result.Records {
		location := ""
		if file := record.Reference.Provenance.File; file != "" {
			location = fmt.Sprintf(" [%s:%d]", file, record.Reference.Provenance.Line)
		}
		if _, err := fmt.Fprintf(out, "%s%s\n", record, location); err != nil {
			return err
		}
	}

	summary := result.Summary()
	_, err := fmt.Fprintf(out, "\n%d updates available, %d up to date, %d failed\n",
		summary.Updates, summary.UpToDate, summary.Failed)
	return err
}
