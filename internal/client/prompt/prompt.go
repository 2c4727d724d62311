// Package prompt reads records from a line-oriented terminal session.
package prompt

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/atinyakov/mecsync/internal/models"
)

// Prompter asks questions on out and reads answers from in, one per line.
type Prompter struct {
	sc  *bufio.Scanner
	out io.Writer
}

// New creates a Prompter.
func New(in io.Reader, out io.Writer) *Prompter {
	return &Prompter{sc: bufio.NewScanner(in), out: out}
}

// Ask prints label and returns the trimmed answer. io.EOF means the input
// ended.
func (p *Prompter) Ask(label string) (string, error) {
	fmt.Fprintf(p.out, "%s: ", label)
	if !p.sc.Scan() {
		if err := p.sc.Err(); err != nil {
			return "", err
		}
		return "", io.EOF
	}
	return strings.TrimSpace(p.sc.Text()), nil
}

// AskDefault is Ask with a value used for an empty answer.
func (p *Prompter) AskDefault(label, def string) (string, error) {
	s, err := p.Ask(fmt.Sprintf("%s [%s]", label, def))
	if err != nil {
		return "", err
	}
	if s == "" {
		return def, nil
	}
	return s, nil
}

// AskInt asks for an integer, returning def for an empty answer.
func (p *Prompter) AskInt(label string, def int) (int, error) {
	s, err := p.AskDefault(label, strconv.Itoa(def))
	if err != nil {
		return 0, err
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("%s: %q is not a number", label, s)
	}
	return n, nil
}

// AskPrice asks for an optional amount; a comma decimal separator is
// accepted. An empty answer yields nil.
func (p *Prompter) AskPrice(label string) (*float64, error) {
	s, err := p.Ask(label)
	if err != nil || s == "" {
		return nil, err
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", "."), 64)
	if err != nil {
		return nil, fmt.Errorf("%s: %q is not an amount", label, s)
	}
	return &v, nil
}

// Confirm asks a yes/no question.
func (p *Prompter) Confirm(label string) (bool, error) {
	s, err := p.Ask(label + " (s/n)")
	if err != nil {
		return false, err
	}
	switch strings.ToLower(s) {
	case "s", "sim", "y", "yes":
		return true, nil
	}
	return false, nil
}

// Choose lists options and returns the one picked by number. An empty
// answer picks the first option.
func (p *Prompter) Choose(label string, options []string) (string, error) {
	if len(options) == 0 {
		return "", errors.New("no options")
	}
	for i, o := range options {
		fmt.Fprintf(p.out, "  %d) %s\n", i+1, o)
	}
	n, err := p.AskInt(label, 1)
	if err != nil {
		return "", err
	}
	if n < 1 || n > len(options) {
		return "", fmt.Errorf("%s: choose between 1 and %d", label, len(options))
	}
	return options[n-1], nil
}

var partStatuses = []string{
	string(models.PartInStock), string(models.PartLowStock),
	string(models.PartOutOfStock), string(models.PartDiscontinued),
}

// Part asks for a new inventory part. categories are offered by number.
func (p *Prompter) Part(categories []string) (models.Part, error) {
	var (
		part models.Part
		err  error
	)
	if part.Name, err = p.Ask("Nome"); err != nil {
		return part, err
	}
	if part.InternalCode, err = p.Ask("Código interno"); err != nil {
		return part, err
	}
	if part.OriginalCode, err = p.Ask("Código original"); err != nil {
		return part, err
	}
	if part.Category, err = p.Choose("Categoria", categories); err != nil {
		return part, err
	}
	status, err := p.Choose("Status", partStatuses)
	if err != nil {
		return part, err
	}
	part.Status = models.PartStatus(status)
	if part.SupplierName, err = p.Ask("Fornecedor"); err != nil {
		return part, err
	}
	if part.Description, err = p.Ask("Descrição"); err != nil {
		return part, err
	}
	if part.Price, err = p.AskPrice("Preço (vazio para nenhum)"); err != nil {
		return part, err
	}
	return part, nil
}

// Vehicle asks for a fleet vehicle.
func (p *Prompter) Vehicle() (models.Vehicle, error) {
	var (
		v   models.Vehicle
		err error
	)
	fields := []struct {
		label string
		dst   *string
	}{
		{"Prefixo", &v.Prefix},
		{"Placa", &v.Plate},
		{"Chassi", &v.VIN},
		{"Modelo", &v.Model},
		{"Ano", &v.Year},
		{"Carroceria", &v.BodyType},
	}
	for _, f := range fields {
		if *f.dst, err = p.Ask(f.label); err != nil {
			return v, err
		}
	}
	return v, nil
}

// Items reads "partId quantity" lines until an empty line.
func (p *Prompter) Items() ([]models.OrderItem, error) {
	items := []models.OrderItem{}
	for {
		s, err := p.Ask("Item (id quantidade, vazio para terminar)")
		if err != nil {
			return items, err
		}
		if s == "" {
			return items, nil
		}
		fields := strings.Fields(s)
		qty := 1
		if len(fields) > 1 {
			if qty, err = strconv.Atoi(fields[1]); err != nil || qty < 1 {
				fmt.Fprintf(p.out, "Quantidade inválida: %q\n", fields[1])
				continue
			}
		}
		items = append(items, models.OrderItem{PartID: fields[0], Quantity: qty})
	}
}

// Hotspots asks for a JSON file holding diagram hotspots. An empty path
// means no hotspots; an unreadable file is reported and yields none.
func (p *Prompter) Hotspots() ([]models.DiagramHotspot, error) {
	path, err := p.Ask("Arquivo de hotspots (vazio para nenhum)")
	if err != nil || path == "" {
		return []models.DiagramHotspot{}, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(p.out, "Failed to read file %q: %v\n", path, err)
		return []models.DiagramHotspot{}, nil
	}
	var hotspots []models.DiagramHotspot
	if err := json.Unmarshal(data, &hotspots); err != nil {
		return nil, fmt.Errorf("hotspots file %q: %w", path, err)
	}
	return hotspots, nil
}
