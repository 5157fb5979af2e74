package validate

import (
	"errors"
	"testing"

	"pricetracker/internal/model"
)

func TestRecord(t *testing.T) {
	tests := []struct {
		name      string
		rec       model.Record
		wantField string
	}{
		{"valid", model.Record{URL: "https://shop.example.com/p/1", Price: "19.99"}, ""},
		{"valid no price", model.Record{URL: "http://shop.example.com/p/1"}, ""},
		{"uppercase scheme", model.Record{URL: "HTTPS://shop.example.com/p/1"}, ""},
		{"empty url", model.Record{URL: "  "}, "url"},
		{"no scheme", model.Record{URL: "shop.example.com/p/1"}, "url"},
		{"ftp scheme", model.Record{URL: "ftp://shop.example.com/p/1"}, "url"},
		{"no host", model.Record{URL: "https:///p/1"}, "url"},
		{"bad price", model.Record{URL: "https://shop.example.com/p/1", Price: "call us"}, "price"},
		{"formatted price", model.Record{URL: "https://shop.example.com/p/1", Price: "$1,299.99"}, ""},
		{"negative price", model.Record{URL: "https://shop.example.com/p/1", Price: "-100"}, ""},
		{"price with words", model.Record{URL: "https://shop.example.com/p/1", Price: "was 100"}, "price"},
		{"exponent price", model.Record{URL: "https://shop.example.com/p/1", Price: "1e2"}, "price"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Record(tt.rec)
			if tt.wantField == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			var verr *Error
			if !errors.As(err, &verr) {
				t.Fatalf("expected *Error, got %v", err)
			}
			if verr.Field != tt.wantField {
				t.Errorf("field = %s, want %s", verr.Field, tt.wantField)
			}
		})
	}
}
