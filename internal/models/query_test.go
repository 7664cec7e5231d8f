package models

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestQueryRequest_Validate(t *testing.T) {
	tests := []struct {
		name    string
		req     *QueryRequest
		wantErr bool
	}{
		{"empty query", &QueryRequest{TenderID: "t1", Query: ""}, true},
		{"whitespace query", &QueryRequest{TenderID: "t1", Query: " \n\t "}, true},
		{"missing tender", &QueryRequest{Query: "hello"}, true},
		{"blank tender", &QueryRequest{TenderID: "  ", Query: "hello"}, true},
		{"valid", &QueryRequest{TenderID: "t1", Query: "hello"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrValidation) {
				t.Errorf("expected ErrValidation, got %v", err)
			}
		})
	}
}

func TestParseStrategy(t *testing.T) {
	tests := []struct {
		in      string
		want    Strategy
		wantErr bool
	}{
		{"", StrategyNone, false},
		{"exact_lookup", StrategyExactLookup, false},
		{"VECTOR", StrategyVector, false},
		{" hybrid ", StrategyHybrid, false},
		{"bm25", StrategyNone, true},
	}
	for _, tt := range tests {
		got, err := ParseStrategy(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseStrategy(%q) err = %v", tt.in, err)
		}
		if got != tt.want {
			t.Errorf("ParseStrategy(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestStrategy_JSON(t *testing.T) {
	b, err := json.Marshal(QueryRequest{TenderID: "t", Query: "q", Strategy: StrategyHybrid})
	if err != nil {
		t.Fatal(err)
	}
	var got QueryRequest
	if err := json.Unmarshal(b, &got); err != nil {
		t.Fatal(err)
	}
	if got.Strategy != StrategyHybrid {
		t.Errorf("round trip strategy = %v", got.Strategy)
	}
}
