// Package testutil holds fixtures shared by package tests.
package testutil

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"

	"cvix/internal/resume"
)

// MinimalPDF returns a structurally valid PDF with the given number of empty pages.
func MinimalPDF(pages int) []byte {
	if pages < 1 {
		pages = 1
	}
	var buf bytes.Buffer
	var offsets []int
	obj := func(body string) {
		offsets = append(offsets, buf.Len())
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", len(offsets), body)
	}

	buf.WriteString("%PDF-1.4\n")
	obj("<< /Type /Catalog /Pages 2 0 R >>")

	kids := ""
	for i := 0; i < pages; i++ {
		kids += fmt.Sprintf("%d 0 R ", 3+i)
	}
	obj(fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", kids, pages))
	for i := 0; i < pages; i++ {
		obj("<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] >>")
	}

	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", len(offsets)+1)
	buf.WriteString("0000000000 65535 f \n")
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n", len(offsets)+1, xref)
	buf.WriteString("%%EOF\n")
	return buf.Bytes()
}

// SampleResume returns a résumé that passes validation and the injection scan.
func SampleResume() *resume.Resume {
	return &resume.Resume{
		Basics: resume.Basics{
			Name:    "John & Jane $ Doe",
			Label:   "Software Engineer",
			Email:   "jdoe@example.com",
			Phone:   "+1 555 0100",
			URL:     "https://example.com/~jdoe",
			Summary: "Builds reliable systems; 100% test coverage fan.",
			Location: resume.Location{
				City:        "Springfield",
				Region:      "IL",
				CountryCode: "US",
			},
		},
		Work: []resume.Work{
			{
				Company:    "A&B Corp",
				Position:   "Senior Engineer",
				StartDate:  "2021-03",
				Summary:    "Owned the billing pipeline.",
				Highlights: []string{"Cut p99 latency by 40%", "Mentored 4 engineers"},
			},
			{
				Company:   "Initech",
				Position:  "Engineer",
				StartDate: "2017-06",
				EndDate:   "2021-02",
			},
		},
		Education: []resume.Education{
			{Institution: "State University", StudyType: "BSc", Area: "Computer Science", StartDate: "2013", EndDate: "2017"},
		},
		Skills: []resume.Skill{
			{Name: "Go", Level: "Expert", Keywords: []string{"concurrency", "net/http"}},
			{Name: "C#", Keywords: []string{".NET"}},
		},
		Languages: []resume.Language{{Language: "English", Fluency: "Native"}},
	}
}

// DiscardLogger returns a logger that writes nowhere.
func DiscardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
