package view

import (
	"log"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"metagrid/internal/entity"
	"metagrid/internal/schema"
)

// ResolvedButton is a custom action ready to render for one record.
type ResolvedButton struct {
	ID     string            `json:"id"`
	Label  string            `json:"label"`
	Icon   string            `json:"icon,omitempty"`
	Kind   schema.ButtonKind `json:"kind"`
	Target string            `json:"target"`
}

// ResolveButtons evaluates each declarative button's condition against the
// record. An empty condition always shows; a condition that fails to
// compile or evaluate hides the button and logs once per evaluation.
// Compiled programs are cached on the schema document.
func ResolveButtons(s *schema.Schema, rec entity.Record) []ResolvedButton {
	if len(s.CustomButtons) == 0 {
		return nil
	}
	var out []ResolvedButton
	for i := range s.CustomButtons {
		b := &s.CustomButtons[i]
		visible, err := evaluateButtonCondition(b, rec)
		if err != nil {
			log.Printf("WARN: button %s condition: %v", b.ID, err)
			continue
		}
		if !visible {
			continue
		}
		out = append(out, ResolvedButton{
			ID: b.ID, Label: b.Label, Icon: b.Icon, Kind: b.Kind, Target: b.Target,
		})
	}
	return out
}

func evaluateButtonCondition(b *schema.CustomButton, rec entity.Record) (bool, error) {
	if b.Condition == "" {
		return true, nil
	}

	env := map[string]any{
		"record": map[string]any(rec),
		"status": rec.Status(),
	}

	// Lazy-compile and cache the condition program.
	if b.CompiledCondition == nil {
		prog, err := expr.Compile(b.Condition, expr.AsBool(), expr.AllowUndefinedVariables())
		if err != nil {
			return false, err
		}
		b.CompiledCondition = prog
	}
	prog, ok := b.CompiledCondition.(*vm.Program)
	if !ok {
		return false, nil
	}

	result, err := expr.Run(prog, env)
	if err != nil {
		return false, err
	}
	visible, _ := result.(bool)
	return visible, nil
}
