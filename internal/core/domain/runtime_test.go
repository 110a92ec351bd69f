package domain

import (
	"sync"
	"testing"
)

func TestNewRuntimeConfig(t *testing.T) {
	config := NewRuntimeConfig("pinecone", SchemaTenant)

	if config == nil {
		t.Fatal("expected non-nil config")
	}
	if config.VectorBackend != "pinecone" {
		t.Errorf("expected pinecone, got %s", config.VectorBackend)
	}
	if config.Schema != SchemaTenant {
		t.Errorf("expected tenant schema, got %s", config.Schema)
	}
	if config.EmbeddingAvailable() {
		t.Error("expected embedding to be unavailable initially")
	}
	if config.LLMAvailable() {
		t.Error("expected LLM to be unavailable initially")
	}
	if config.CacheAvailable() || config.IngestionLogAvailable() {
		t.Error("expected optional providers to be unavailable initially")
	}
}

func TestRuntimeConfig_Flags(t *testing.T) {
	config := NewRuntimeConfig("qdrant", SchemaBasic)

	config.SetEmbeddingAvailable(true)
	if !config.EmbeddingAvailable() {
		t.Error("expected embedding to be available after setting")
	}
	config.SetEmbeddingAvailable(false)
	if config.EmbeddingAvailable() {
		t.Error("expected embedding to be unavailable after clearing")
	}

	config.SetCacheAvailable(true)
	config.SetIngestionLogAvailable(true)
	if !config.CacheAvailable() || !config.IngestionLogAvailable() {
		t.Error("expected cache and ingestion log to be available")
	}
}

func TestRuntimeConfig_CanGenerateAnswers(t *testing.T) {
	config := NewRuntimeConfig("pinecone", SchemaTenant)

	config.SetLLMAvailable(true)
	if config.CanGenerateAnswers() {
		t.Error("generation needs embeddings too")
	}

	config.SetEmbeddingAvailable(true)
	if !config.CanIngest() {
		t.Error("expected ingestion to be possible")
	}
	if !config.CanGenerateAnswers() {
		t.Error("expected answer generation to be possible")
	}
}

func TestRuntimeConfig_Capabilities(t *testing.T) {
	config := NewRuntimeConfig("pinecone", SchemaTenant)
	config.SetLLMAvailable(true)

	caps := config.Capabilities()
	if !caps["generation"] {
		t.Error("expected generation capability")
	}
	if caps["embedding"] || caps["cache"] || caps["ingestion_log"] {
		t.Errorf("unexpected capabilities: %v", caps)
	}
}

func TestRuntimeConfig_ConcurrentAccess(t *testing.T) {
	config := NewRuntimeConfig("pinecone", SchemaTenant)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func(v bool) {
			defer wg.Done()
			config.SetEmbeddingAvailable(v)
			config.SetLLMAvailable(v)
		}(i%2 == 0)
		go func() {
			defer wg.Done()
			_ = config.CanGenerateAnswers()
			_ = config.Capabilities()
		}()
	}
	wg.Wait()
}
