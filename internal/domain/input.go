package domain

import (
	"encoding/json"
	"maps"
)

// Ключи Input.
const (
	InputKeyProcedureID = "procedureId"
	InputKeyProduct     = "product"
	InputKeyStepParams  = "stepParams"
)

// Input — входные параметры run / schedule.
//
// Хранится как map, потому что обновление schedule делает shallow merge
// поверх существующего input, а не замену.
type Input map[string]any

// NewInput собирает Input из типизированных полей.
func NewInput(procedureID, product string, stepParams map[string]map[string]any) Input {
	params := make(map[string]any, len(stepParams))
	for id, p := range stepParams {
		params[id] = p
	}
	return Input{
		InputKeyProcedureID: procedureID,
		InputKeyProduct:     product,
		InputKeyStepParams:  params,
	}
}

// ProcedureID возвращает идентификатор procedure.
func (in Input) ProcedureID() string {
	s, _ := in[InputKeyProcedureID].(string)
	return s
}

// Product возвращает идентификатор продукта.
func (in Input) Product() string {
	s, _ := in[InputKeyProduct].(string)
	return s
}

// StepParams возвращает параметры шагов (stepID → params).
// Некорректные значения пропускаются.
func (in Input) StepParams() map[string]map[string]any {
	result := make(map[string]map[string]any)
	switch raw := in[InputKeyStepParams].(type) {
	case map[string]map[string]any:
		for id, p := range raw {
			result[id] = p
		}
	case map[string]any:
		for id, v := range raw {
			if p, ok := v.(map[string]any); ok {
				result[id] = p
			}
		}
	}
	return result
}

// Merge возвращает новый Input: ключи patch перекрывают существующие,
// остальные сохраняются (shallow merge).
func (in Input) Merge(patch Input) Input {
	merged := in.Clone()
	if merged == nil {
		merged = make(Input, len(patch))
	}
	maps.Copy(merged, patch)
	return merged
}

// Clone возвращает поверхностную копию.
func (in Input) Clone() Input {
	if in == nil {
		return nil
	}
	return maps.Clone(in)
}

// Normalize приводит вложенные значения к JSON-виду
// (map[string]any, []any, float64), как после чтения из хранилища.
func (in Input) Normalize() (Input, error) {
	data, err := json.Marshal(in)
	if err != nil {
		return nil, err
	}
	var out Input
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}
