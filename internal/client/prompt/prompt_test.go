package prompt

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/atinyakov/mecsync/internal/models"
)

func newPrompter(input string) (*Prompter, *bytes.Buffer) {
	out := &bytes.Buffer{}
	return New(strings.NewReader(input), out), out
}

func TestPart(t *testing.T) {
	input := "Filtro de Óleo\nINT-001\nW950\n2\n\nFiltros SA\nfiltro blindado\n89,90\n"
	p, out := newPrompter(input)

	part, err := p.Part([]string{models.CategoryEngine, models.CategoryBrakes})
	if err != nil {
		t.Fatalf("Part failed: %v", err)
	}
	if part.Name != "Filtro de Óleo" || part.InternalCode != "INT-001" || part.OriginalCode != "W950" {
		t.Errorf("unexpected part: %+v", part)
	}
	if part.Category != models.CategoryBrakes {
		t.Errorf("Category = %q; want %q", part.Category, models.CategoryBrakes)
	}
	if part.Status != models.PartInStock {
		t.Errorf("Status = %q; want default %q", part.Status, models.PartInStock)
	}
	if part.Price == nil || *part.Price != 89.9 {
		t.Errorf("Price = %v; want 89.9", part.Price)
	}
	if !strings.Contains(out.String(), "2) Freios") {
		t.Errorf("options not listed: %q", out.String())
	}
}

func TestPart_InvalidChoice(t *testing.T) {
	p, _ := newPrompter("x\ny\nz\n7\n")
	if _, err := p.Part([]string{models.CategoryEngine}); err == nil {
		t.Error("expected error for out-of-range choice")
	}
}

func TestAsk_EOF(t *testing.T) {
	p, _ := newPrompter("")
	if _, err := p.Ask("Nome"); err != io.EOF {
		t.Errorf("err = %v; want io.EOF", err)
	}
}

func TestVehicle(t *testing.T) {
	p, _ := newPrompter("567\nABC1D23\n9BM\nO500\n2020\nUrbano\n")
	v, err := p.Vehicle()
	if err != nil {
		t.Fatal(err)
	}
	want := models.Vehicle{Prefix: "567", Plate: "ABC1D23", VIN: "9BM", Model: "O500", Year: "2020", BodyType: "Urbano"}
	if v != want {
		t.Errorf("Vehicle = %+v; want %+v", v, want)
	}
}

func TestItems(t *testing.T) {
	p, out := newPrompter("p1 2\np2\np3 zero\n\n")
	items, err := p.Items()
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 2 || items[0].Quantity != 2 || items[1].Quantity != 1 {
		t.Errorf("unexpected items: %+v", items)
	}
	if !strings.Contains(out.String(), "Quantidade inválida") {
		t.Errorf("expected warning, got %q", out.String())
	}
}

func TestConfirm(t *testing.T) {
	p, _ := newPrompter("Sim\nn\n")
	if ok, _ := p.Confirm("Continuar"); !ok {
		t.Error("expected yes")
	}
	if ok, _ := p.Confirm("Continuar"); ok {
		t.Error("expected no")
	}
}

func TestHotspots_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hotspots.json")
	if err := os.WriteFile(path, []byte(`[{"id":"h1","label":"1","x":10,"y":20,"partId":null}]`), 0o600); err != nil {
		t.Fatal(err)
	}
	p, _ := newPrompter(path + "\n")
	hs, err := p.Hotspots()
	if err != nil {
		t.Fatal(err)
	}
	if len(hs) != 1 || hs[0].Label != "1" || hs[0].PartID != nil {
		t.Errorf("unexpected hotspots: %+v", hs)
	}
}

func TestHotspots_FileNotFound(t *testing.T) {
	p, out := newPrompter("/no/such/file\n")
	hs, err := p.Hotspots()
	if err != nil {
		t.Fatal(err)
	}
	if len(hs) != 0 {
		t.Errorf("hotspots = %v; want none", hs)
	}
	if !strings.Contains(out.String(), "Failed to read file") {
		t.Errorf("expected error message in output, got %q", out.String())
	}
}
