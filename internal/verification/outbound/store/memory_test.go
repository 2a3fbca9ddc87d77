package store

import (
	"testing"

	"github.com/shandysiswandi/smsotp/internal/pkg/instrument"
)

func TestMemory(t *testing.T) {
	testStoreContract(t, func(t *testing.T) recordStore {
		return NewMemory(instrument.NewNoop())
	})
}
