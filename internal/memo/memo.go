// Package memo drafts the short cover note placed above the expense table in
// the request email. Notes are Markdown.
package memo

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/vbonduro/viatico/internal/domain"
)

// Prompt is the instruction shared by model-backed writers.
const Prompt = `Redacta una nota breve (máximo tres oraciones, en español, formato Markdown)
para acompañar una solicitud de viáticos dirigida al área de administración.
Menciona la zona, cuántas personas viajan y el monto total en pesos chilenos.
No inventes datos que no estén en el resumen. Responde solo con la nota.`

type Writer interface {
	Write(ctx context.Context, s Summary) (string, error)
}

// Summary is the part of a request a cover note may mention.
type Summary struct {
	Zone domain.Zone
	Crew []domain.CrewMember
	Rows []domain.ExpenseRow
}

// Total sums every cell of every row for current crew members.
func (s Summary) Total() int64 {
	var total int64
	for _, row := range s.Rows {
		for _, m := range s.Crew {
			total += row.Values[m.ID]
		}
	}
	return total
}

// Describe renders the summary as plain text lines for a model prompt.
func (s Summary) Describe() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Zona: %s\n", s.Zone)
	fmt.Fprintf(&b, "Personas: %d\n", len(s.Crew))
	for _, m := range s.Crew {
		fmt.Fprintf(&b, "- %s (%s)\n", m.Name, m.RoleLabel())
	}
	fmt.Fprintf(&b, "Total: %s\n", FormatCLP(s.Total()))
	return b.String()
}

var clpPrinter = message.NewPrinter(language.Spanish)

// FormatCLP formats an amount of Chilean pesos, e.g. $42.000.
func FormatCLP(amount int64) string {
	return "$" + clpPrinter.Sprintf("%d", amount)
}

// Static writes a fixed note from the summary without calling any model.
type Static struct{}

func (Static) Write(_ context.Context, s Summary) (string, error) {
	people := "persona"
	if len(s.Crew) != 1 {
		people = "personas"
	}
	return fmt.Sprintf("Se solicitan viáticos para **%s**: %d %s, total %s.",
		s.Zone, len(s.Crew), people, FormatCLP(s.Total())), nil
}

// None writes no note.
type None struct{}

func (None) Write(context.Context, Summary) (string, error) { return "", nil }
