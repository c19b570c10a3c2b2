package serializer

import (
	"testing"
)

// benchmarkRecords returns a set of payloads for targeted benchmarking
func benchmarkRecords() map[string]record {
	return map[string]record{
		"Empty":          {},
		"SmallName":      {Name: "k"},
		"MediumName":     {Name: "medium-length-name-for-testing", Count: 7},
		"SmallData":      {Name: "key", Data: []byte("v")},
		"LargeData":      {Name: "key", Data: make([]byte, 1024)},    // 1KB of data
		"VeryLargeData":  {Name: "key", Data: make([]byte, 1024*16)}, // 16KB of data
		"CompleteRecord": {Name: "complete-test-record", Count: 1 << 40, Data: []byte("test-value-data")},
	}
}

// BenchmarkSerialize benchmarks serialization for all implementations with various payloads
func BenchmarkSerialize(b *testing.B) {
	records := benchmarkRecords()

	for name, factory := range testSerializers {
		for recName, rec := range records {
			b.Run(name+"_"+recName, func(b *testing.B) {
				serializer := factory()
				b.ResetTimer()

				for i := 0; i < b.N; i++ {
					_, err := serializer.Serialize(rec)
					if err != nil {
						b.Fatalf("Failed to serialize: %v", err)
					}
				}
			})
		}
	}
}

// BenchmarkDeserialize benchmarks deserialization for all implementations with various payloads
func BenchmarkDeserialize(b *testing.B) {
	records := benchmarkRecords()
	serializedData := make(map[string]map[string][]byte)

	// Pre-serialize all payloads with all serializers
	for name, factory := range testSerializers {
		serializer := factory()
		serializedData[name] = make(map[string][]byte)

		for recName, rec := range records {
			data, err := serializer.Serialize(rec)
			if err != nil {
				b.Fatalf("Failed to serialize %s with %s: %v", recName, name, err)
			}
			serializedData[name][recName] = data
		}
	}

	for name, factory := range testSerializers {
		for recName := range records {
			b.Run(name+"_"+recName, func(b *testing.B) {
				serializer := factory()
				data := serializedData[name][recName]
				b.ResetTimer()

				for i := 0; i < b.N; i++ {
					var rec record
					if err := serializer.Deserialize(data, &rec); err != nil {
						b.Fatalf("Failed to deserialize: %v", err)
					}
				}
			})
		}
	}
}

// BenchmarkSize measures and reports the serialized size for each payload
func BenchmarkSize(b *testing.B) {
	records := benchmarkRecords()

	for name, factory := range testSerializers {
		serializer := factory()

		for recName, rec := range records {
			b.Run(name+"_"+recName, func(b *testing.B) {
				data, err := serializer.Serialize(rec)
				if err != nil {
					b.Fatalf("Failed to serialize: %v", err)
				}

				// Report the size as a custom metric
				b.ReportMetric(float64(len(data)), "bytes")

				for i := 0; i < b.N; i++ {
				}
			})
		}
	}
}
