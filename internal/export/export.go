// Package export turns the expense grid into the downloadable JSON document
// and the HTML table sent by email.
package export

import (
	"bytes"
	"encoding/json"
	"fmt"
	"html/template"
	"strings"

	"github.com/yuin/goldmark"
	gmhtml "github.com/yuin/goldmark/renderer/html"

	"github.com/vbonduro/viatico/internal/domain"
)

// Filename is the name offered for the JSON download.
const Filename = "gastos_viaticos.json"

// Subject is the default subject of the request email.
const Subject = "Solicitud de Viático"

// Detail is one crew member's cell of an exported line.
type Detail struct {
	Role  string `json:"role"`
	Value int64  `json:"value"`
}

// Line is one exported expense row, keyed by crew member name.
type Line struct {
	Type    string            `json:"type"`
	Details map[string]Detail `json:"details"`
}

// Lines builds one Line per row with a Detail for every crew member.
// Missing cells export as zero.
func Lines(crew []domain.CrewMember, rows []domain.ExpenseRow) []Line {
	lines := make([]Line, 0, len(rows))
	for _, row := range rows {
		details := make(map[string]Detail, len(crew))
		for _, m := range crew {
			details[m.Name] = Detail{Role: m.RoleLabel(), Value: row.Values[m.ID]}
		}
		lines = append(lines, Line{Type: row.Type, Details: details})
	}
	return lines
}

// JSON renders Lines as indented UTF-8 JSON.
func JSON(crew []domain.CrewMember, rows []domain.ExpenseRow) ([]byte, error) {
	data, err := json.MarshalIndent(Lines(crew, rows), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal export: %w", err)
	}
	return data, nil
}

var tableTmpl = template.Must(template.New("table").Parse(
	`<table border='1' style='border-collapse: collapse; width: 100%; text-align: left;'>` +
		`<thead><tr style='background-color: #f2f2f2;'><th>Tipo de Viático</th>` +
		`{{range .Crew}}<th style="padding: 8px; border: 1px solid #ddd;">{{.Name}} ({{.RoleLabel}})</th>{{end}}` +
		`</tr></thead><tbody>` +
		`{{range .Rows}}<tr><td style='padding: 8px; border: 1px solid #ddd;'>{{.Type}}</td>` +
		`{{range .Cells}}<td style='padding: 8px; border: 1px solid #ddd;'>{{.}}</td>{{end}}</tr>{{end}}` +
		`</tbody></table>`))

var emailTmpl = template.Must(template.New("email").Parse(
	`<div><h3>{{.Title}}</h3>{{.Memo}}{{.Table}}</div>`))

type tableRow struct {
	Type  string
	Cells []int64
}

// HTMLTable renders the grid as an inline-styled HTML table: a header with
// one "name (roles)" column per crew member, then one line per row with the
// raw amounts.
func HTMLTable(crew []domain.CrewMember, rows []domain.ExpenseRow) (string, error) {
	view := struct {
		Crew []domain.CrewMember
		Rows []tableRow
	}{Crew: crew, Rows: make([]tableRow, len(rows))}
	for i, row := range rows {
		cells := make([]int64, len(crew))
		for j, m := range crew {
			cells[j] = row.Values[m.ID]
		}
		view.Rows[i] = tableRow{Type: row.Type, Cells: cells}
	}

	var buf bytes.Buffer
	if err := tableTmpl.Execute(&buf, view); err != nil {
		return "", fmt.Errorf("failed to render table: %w", err)
	}
	return buf.String(), nil
}

var markdown = goldmark.New(goldmark.WithRendererOptions(gmhtml.WithHardWraps()))

// EmailBody wraps the HTML table under a heading, preceded by memo rendered
// from Markdown. Raw HTML inside memo is not passed through.
func EmailBody(crew []domain.CrewMember, rows []domain.ExpenseRow, memo string) (string, error) {
	table, err := HTMLTable(crew, rows)
	if err != nil {
		return "", err
	}

	var memoHTML bytes.Buffer
	if strings.TrimSpace(memo) != "" {
		if err := markdown.Convert([]byte(memo), &memoHTML); err != nil {
			return "", fmt.Errorf("failed to render memo: %w", err)
		}
	}

	var buf bytes.Buffer
	err = emailTmpl.Execute(&buf, map[string]any{
		"Title": Subject,
		"Memo":  template.HTML(memoHTML.String()),
		"Table": template.HTML(table),
	})
	if err != nil {
		return "", fmt.Errorf("failed to render email body: %w", err)
	}
	return buf.String(), nil
}
