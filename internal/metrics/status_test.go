package metrics

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFlattenStatusBuckets(t *testing.T) {
	tests := []struct {
		name    string
		buckets map[string]int
		want    []StatusBucket
	}{
		{
			name:    "nil buckets",
			buckets: nil,
			want:    nil,
		},
		{
			name:    "empty buckets",
			buckets: map[string]int{},
			want:    nil,
		},
		{
			name:    "single bucket",
			buckets: map[string]int{"200": 10},
			want:    []StatusBucket{{Code: "200", Count: 10}},
		},
		{
			name:    "sorted by count desc",
			buckets: map[string]int{"200": 10, "500": 5, TransportErrorCode: 20},
			want: []StatusBucket{
				{Code: TransportErrorCode, Count: 20},
				{Code: "200", Count: 10},
				{Code: "500", Count: 5},
			},
		},
		{
			name:    "tie breaking by code",
			buckets: map[string]int{"503": 3, "200": 3, "404": 3},
			want: []StatusBucket{
				{Code: "200", Count: 3},
				{Code: "404", Count: 3},
				{Code: "503", Count: 3},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FlattenStatusBuckets(tt.buckets))
		})
	}
}
