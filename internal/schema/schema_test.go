package schema

import (
	"encoding/json"
	"reflect"
	"testing"
)

func TestParse_DerivesFieldSets(t *testing.T) {
	raw := json.RawMessage(`{
		"safedocs-pdf": {
			"mappings": {
				"properties": {
					"creator": {"type": "keyword"},
					"body": {"type": "text"},
					"size": {"type": "long"},
					"q_keys": {
						"type": "text",
						"fields": {
							"keyword": {"type": "keyword"},
							"completion": {"type": "completion"}
						}
					}
				}
			}
		}
	}`)

	s, err := Parse(raw)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	wantAll := []string{"body", "creator", "q_keys", "size"}
	if !reflect.DeepEqual(s.AllFields, wantAll) {
		t.Errorf("AllFields = %v, want %v", s.AllFields, wantAll)
	}

	wantKeyword := []string{"creator", "q_keys"}
	if !reflect.DeepEqual(s.KeywordFields, wantKeyword) {
		t.Errorf("KeywordFields = %v, want %v", s.KeywordFields, wantKeyword)
	}

	if !s.HasCompletion("q_keys") || s.HasCompletion("creator") {
		t.Errorf("CompletionFields = %v", s.CompletionFields)
	}
}

func TestParse_BadPayload(t *testing.T) {
	if _, err := Parse(json.RawMessage(`not json`)); err == nil {
		t.Error("expected decode error")
	}

	s, err := Parse(json.RawMessage(`{}`))
	if err != nil {
		t.Fatalf("empty mapping should parse: %v", err)
	}
	if len(s.AllFields) != 0 {
		t.Errorf("AllFields = %v, want empty", s.AllFields)
	}
}

func TestMergeOrder(t *testing.T) {
	tests := []struct {
		name      string
		persisted []string
		current   []string
		want      []string
	}{
		{
			name:      "equal length keeps analyst reorder",
			persisted: []string{"c", "a", "b"},
			current:   []string{"a", "b", "c"},
			want:      []string{"c", "a", "b"},
		},
		{
			name:      "new field appended after surviving order",
			persisted: []string{"c", "a"},
			current:   []string{"a", "b", "c"},
			want:      []string{"c", "a", "b"},
		},
		{
			name:      "removed field dropped",
			persisted: []string{"c", "gone", "a"},
			current:   []string{"a", "c"},
			want:      []string{"c", "a"},
		},
		{
			name:      "empty persisted adopts schema order",
			persisted: nil,
			current:   []string{"a", "b"},
			want:      []string{"a", "b"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MergeOrder(tt.persisted, tt.current)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("MergeOrder = %v, want %v", got, tt.want)
			}
		})
	}
}
