package engine

import (
	"context"
	"errors"
	"testing"
)

func weaponProps() map[string]any {
	return map[string]any{
		"str": "3",
		"weapons": map[string]any{
			"0":  map[string]any{"name": "Dagger", "damage": "4", "weight": 1, "equipped": true},
			"1":  map[string]any{"name": "Sword", "damage": "8", "weight": 3, "equipped": false},
			"2":  map[string]any{"name": "Old", "damage": "2", "weight": 1, "equipped": true, "deleted": true},
			"10": map[string]any{"name": "Spear", "damage": "6", "weight": 2, "equipped": false},
		},
	}
}

func TestFunctions(t *testing.T) {
	tests := []struct {
		name    string
		formula string
		opts    Options
		want    string
	}{
		{name: "ref", formula: "ref('str') + 1", want: "4"},
		{name: "ref fallback", formula: "ref('missing', 7)", want: "7"},
		{name: "find then ref", formula: "ref(find('weapons', 'damage', 'name', 'Sword'))", want: "8"},
		{name: "find no match", formula: "find('weapons', 'damage', 'name', 'Axe') == nil", want: "true"},
		{name: "find skips deleted rows", formula: "find('weapons', 'damage', 'name', 'Old') == nil", want: "true"},
		{name: "lookup all rows in id order", formula: "lookup('weapons', 'name')", want: "Dagger, Sword, Spear"},
		{name: "lookup equality", formula: "lookup('weapons', 'damage', 'equipped', true)", want: "4"},
		{name: "lookup ordering", formula: "lookup('weapons', 'name', 'weight', 2, '>=')", want: "Sword, Spear"},
		{name: "lookup strict", formula: "len(lookup('weapons', 'name', 'weight', '3', '==='))", want: "0"},
		{name: "lookup not equal", formula: "lookup('weapons', 'name', 'name', 'Sword', '!=')", want: "Dagger, Spear"},
		{name: "lookup pattern", formula: "lookup('weapons', 'name', 'name', '^S', '~')", want: "Sword, Spear"},
		{name: "filterTable", formula: "filterTable('weapons', 'name', 'equipped = true')", want: "Dagger"},
		{name: "filterTable numeric", formula: "filterTable('weapons', 'name', 'weight > 1 AND weight < 3')", want: "Spear"},
		{name: "filterTable bool conjunction", formula: "filterTable('weapons', 'name', 'equipped = true AND weight < 3')", want: "Dagger"},
		{name: "filterTable false literal", formula: "filterTable('weapons', 'name', 'equipped = false')", want: "Sword, Spear"},
		{name: "sameRow", formula: "sameRow('damage') * 2", opts: Options{Reference: "weapons.1"}, want: "16"},
		{name: "sameRowRef", formula: "sameRowRef('damage')", opts: Options{Reference: "weapons.1"}, want: "weapons.1.damage"},
		{name: "switchCase match", formula: "switchCase(str, 1, 'one', 3, 'three', 'other')", want: "three"},
		{name: "switchCase fallback", formula: "switchCase(9, 1, 'one', 'other')", want: "other"},
		{name: "switchCase no match", formula: "switchCase(9, 1, 'one') == nil", want: "true"},
		{name: "replace", formula: "replace('a-b-c', '-', '+')", want: "a+b-c"},
		{name: "replaceAll", formula: "replaceAll('a-b-c', '-', '+')", want: "a+b+c"},
		{name: "first", formula: "first(lookup('weapons', 'damage')) + 1", want: "5"},
		{name: "first fallback", formula: "first(lookup('weapons', 'damage', 'name', 'Axe'), 7)", want: "7"},
		{name: "let bindings stay local", formula: "let s = 2; s * str", want: "6"},
		{name: "builtins still work", formula: "max(1, str)", want: "3"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewPhrase("${" + tt.formula + "}$")
			if err := p.Compute(context.Background(), nil, weaponProps(), tt.opts); err != nil {
				t.Fatalf("Compute() error = %v", err)
			}
			if got := p.Result(); got != tt.want {
				t.Fatalf("%s = %q, want %q", tt.formula, got, tt.want)
			}
		})
	}
}

func TestFunctions_Unresolvable(t *testing.T) {
	tests := []struct {
		formula string
		token   string
	}{
		{formula: "find('armor', 'ac', 'name', 'Leather')", token: "armor"},
		{formula: "lookup('weapons', 'range')", token: "weapons.0.range"},
		{formula: "filterTable('armor', 'ac', '')", token: "armor"},
	}
	for _, tt := range tests {
		p := NewPhrase("${" + tt.formula + "}$")
		err := p.Compute(context.Background(), nil, weaponProps(), Options{})
		var unresolvable *UnresolvableError
		if !errors.As(err, &unresolvable) {
			t.Fatalf("%s error = %v, want unresolvable", tt.formula, err)
		}
		if unresolvable.Token != tt.token {
			t.Fatalf("%s token = %q, want %q", tt.formula, unresolvable.Token, tt.token)
		}
	}
}

func TestFunctions_Notify(t *testing.T) {
	notifier := &fakeNotifier{}
	rt := &Runtime{Notifier: notifier}

	p := computePhrase(t, rt, "ok${notify('warn', 'low hp')}$", nil, Options{})
	if got := p.Result(); got != "ok" {
		t.Fatalf("Result() = %q, want %q", got, "ok")
	}
	if len(notifier.sent) != 1 || notifier.sent[0] != (notification{severity: SeverityWarn, message: "low hp"}) {
		t.Fatalf("notifications = %+v", notifier.sent)
	}

	p = computePhrase(t, rt, "${notify('loud', 'x')}$", nil, Options{})
	if got := p.Result(); got != ErrorSentinel {
		t.Fatalf("unknown severity Result() = %q, want %q", got, ErrorSentinel)
	}
	if len(notifier.sent) != 1 {
		t.Fatalf("unknown severity still notified: %+v", notifier.sent)
	}
}

func TestFunctions_FetchFromEntity(t *testing.T) {
	goblin := newFakeEntity("Goblin", map[string]any{"hp": "7", "ac": 12})
	rt := &Runtime{Entities: fakeResolver{"target": goblin, "Goblin": goblin}, Notifier: &fakeNotifier{}}

	p := computePhrase(t, rt, "${fetchFromEntity('target', 'hp + 1')}$", nil, Options{})
	if got := p.Value(); got != 8 {
		t.Fatalf("Value() = %#v, want 8", got)
	}

	p = computePhrase(t, rt, "${fetchFromEntity('Orc', 'hp', 3)}$", nil, Options{})
	if got := p.Value(); got != 3 {
		t.Fatalf("missing entity Value() = %#v, want fallback 3", got)
	}
}

func TestFunctions_SetPropertyInEntity(t *testing.T) {
	self := newFakeEntity("Hero", map[string]any{"hp": 10})
	goblin := newFakeEntity("Goblin", map[string]any{"hp": 7})
	rt := &Runtime{Entities: fakeResolver{"target": goblin}}
	props := map[string]any{"dmg": "4"}

	p := computePhrase(t, rt, "${setPropertyInEntity('target', 'hp', 'dmg * 2')}$", props, Options{Trigger: self})
	if got := p.Value(); got != 8 {
		t.Fatalf("Value() = %#v, want 8", got)
	}
	if got := goblin.updates["hp"]; got != 8 {
		t.Fatalf("goblin hp update = %#v, want 8", got)
	}

	computePhrase(t, rt, "${setPropertyInEntity('self', 'status', '\"ok\"')}$", props, Options{Trigger: self})
	if got := self.updates["status"]; got != "ok" {
		t.Fatalf("self status update = %#v, want ok", got)
	}

	p = computePhrase(t, rt, "${setPropertyInEntity('item', 'uses', '1')}$", props, Options{Trigger: self})
	if got := p.Result(); got != ErrorSentinel {
		t.Fatalf("missing item Result() = %q, want %q", got, ErrorSentinel)
	}
}
