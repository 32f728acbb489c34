package liveclient

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/go-cmp/cmp"
)

func TestTemplateDecodeAndRender(t *testing.T) {
	tests := []struct {
		name string
		wire string
		want string
	}{
		{
			name: "static only",
			wire: `{"f":["<p>hello</p>"]}`,
			want: "<p>hello</p>",
		},
		{
			name: "single dynamic slot",
			wire: `{"f":["<p>","</p>"],"0":"hi"}`,
			want: "<p>hi</p>",
		},
		{
			name: "multiple slots interleaved",
			wire: `{"f":["<p>"," and ","</p>"],"0":"one","1":"two"}`,
			want: "<p>one and two</p>",
		},
		{
			name: "missing slot renders empty",
			wire: `{"f":["<p>","</p>"]}`,
			want: "<p></p>",
		},
		{
			name: "nested template",
			wire: `{"f":["<div>","</div>"],"0":{"f":["<span>","</span>"],"0":"inner"}}`,
			want: "<div><span>inner</span></div>",
		},
		{
			name: "loop slot",
			wire: `{"f":["<ul>","</ul>"],"0":{"f":["<li>","</li>"],"e":{"a":{"0":"first"},"b":{"0":"second"}},"ko":["a","b"]}}`,
			want: "<ul><li>first</li><li>second</li></ul>",
		},
		{
			name: "loop honors explicit key order",
			wire: `{"f":["",""],"0":{"f":["<i>","</i>"],"e":{"1":{"0":"x"},"2":{"0":"y"}},"ko":["2","1"]}}`,
			want: "<i>y</i><i>x</i>",
		},
		{
			name: "loop without key order sorts numerically",
			wire: `{"f":["",""],"0":{"f":["<i>","</i>"],"e":{"10":{"0":"ten"},"2":{"0":"two"}}}}`,
			want: "<i>two</i><i>ten</i>",
		},
		{
			name: "empty loop",
			wire: `{"f":["<ul>","</ul>"],"0":{"f":["<li>","</li>"],"e":{},"ko":[]}}`,
			want: "<ul></ul>",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var tmpl Template
			if err := json.Unmarshal([]byte(tt.wire), &tmpl); err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			if got := tmpl.Render(); got != tt.want {
				t.Errorf("Render() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestTemplateDecodeErrors(t *testing.T) {
	tests := []struct {
		name string
		wire string
	}{
		{"not an object", `["a","b"]`},
		{"non numeric slot key", `{"f":[""],"x":"v"}`},
		{"bare array slot", `{"f":["",""],"0":["a"]}`},
		{"null slot outside diff", `{"f":["",""],"0":null}`},
		{"number slot", `{"f":["",""],"0":42}`},
		{"bad fixed fragments", `{"f":"oops"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var tmpl Template
			err := json.Unmarshal([]byte(tt.wire), &tmpl)
			if err == nil {
				t.Fatal("expected decode error, got nil")
			}
			if !errors.Is(err, ErrDecode) {
				t.Errorf("error = %v, want ErrDecode", err)
			}
		})
	}
}

func TestRenderIsPure(t *testing.T) {
	wire := `{"f":["<p>","</p>"],"0":{"f":["<b>","</b>"],"0":"bold"}}`
	var tmpl Template
	if err := json.Unmarshal([]byte(wire), &tmpl); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	first := tmpl.Render()
	second := tmpl.Render()
	if first != second {
		t.Errorf("repeated Render differs: %q then %q", first, second)
	}
}

func TestTemplateRoundTrip(t *testing.T) {
	wires := []string{
		`{"f":["<p>","</p>"],"0":"hi"}`,
		`{"f":["<div>","</div>"],"0":{"f":["<span>","</span>"],"0":"inner"}}`,
		`{"f":["<ul>","</ul>"],"0":{"f":["<li>","</li>"],"e":{"a":{"0":"first"}},"ko":["a"]}}`,
	}

	for _, wire := range wires {
		var tmpl Template
		if err := json.Unmarshal([]byte(wire), &tmpl); err != nil {
			t.Fatalf("unmarshal %s: %v", wire, err)
		}
		out, err := json.Marshal(&tmpl)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		var again Template
		if err := json.Unmarshal(out, &again); err != nil {
			t.Fatalf("re-unmarshal %s: %v", out, err)
		}
		if got, want := again.Render(), tmpl.Render(); got != want {
			t.Errorf("round trip render = %q, want %q (wire %s)", got, want, wire)
		}
	}
}

func TestTemplateDecodeStructure(t *testing.T) {
	wire := `{"f":["<p>","</p>"],"0":"hi"}`
	var tmpl Template
	if err := json.Unmarshal([]byte(wire), &tmpl); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	want := Template{
		Fixed: []string{"<p>", "</p>"},
		Slots: map[int]Dynamic{0: DynString("hi")},
	}
	if diff := cmp.Diff(want, tmpl); diff != "" {
		t.Errorf("decoded template mismatch (-want +got):\n%s", diff)
	}
}

// Randomized inputs: any template assembled from generated fragments
// must survive an encode/decode round trip with an identical rendering.
func TestTemplateRoundTripRandom(t *testing.T) {
	faker := gofakeit.New(42)

	for i := 0; i < 50; i++ {
		tmpl := randomTemplate(faker, 2)
		out, err := json.Marshal(tmpl)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		var again Template
		if err := json.Unmarshal(out, &again); err != nil {
			t.Fatalf("unmarshal %s: %v", out, err)
		}
		if got, want := again.Render(), tmpl.Render(); got != want {
			t.Errorf("round trip render = %q, want %q", got, want)
		}
	}
}

func randomTemplate(faker *gofakeit.Faker, depth int) *Template {
	slotCount := faker.Number(0, 3)
	tmpl := &Template{Slots: make(map[int]Dynamic)}
	for i := 0; i <= slotCount; i++ {
		tmpl.Fixed = append(tmpl.Fixed, fmt.Sprintf("<i>%s</i>", faker.Word()))
	}
	for i := 0; i < slotCount; i++ {
		tmpl.Slots[i] = randomDynamic(faker, depth)
	}
	return tmpl
}

func randomDynamic(faker *gofakeit.Faker, depth int) Dynamic {
	if depth == 0 || faker.Bool() {
		return DynString(faker.Word())
	}
	if faker.Bool() {
		return randomTemplate(faker, depth-1)
	}
	loop := &Loop{
		Fixed:   []string{"<li>", "</li>"},
		Entries: make(map[string]map[int]Dynamic),
	}
	for i := 0; i < faker.Number(1, 3); i++ {
		key := fmt.Sprintf("%d", i)
		loop.Keys = append(loop.Keys, key)
		loop.Entries[key] = map[int]Dynamic{0: DynString(faker.Word())}
	}
	return loop
}

func TestLoopRenderSkipsMissingEntries(t *testing.T) {
	loop := &Loop{
		Fixed: []string{"<li>", "</li>"},
		Keys:  []string{"a", "gone", "b"},
		Entries: map[string]map[int]Dynamic{
			"a": {0: DynString("one")},
			"b": {0: DynString("two")},
		},
	}
	var b strings.Builder
	loop.renderTo(&b)
	if got, want := b.String(), "<li>one</li><li>two</li>"; got != want {
		t.Errorf("render = %q, want %q", got, want)
	}
}
