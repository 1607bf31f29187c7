// Package replies is the catalog of assistant-visible phrases. Every string
// the citizen can read from the system (greetings, nudges, confirmations,
// fallbacks) lives here, keyed, with embedded defaults that a JSON file can
// override per deployment.
package replies

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
)

// Reply keys.
const (
	KeyGreeting           = "greeting"
	KeyAskType            = "ask_type"
	KeyAskDescription     = "ask_description"
	KeyAskLocation        = "ask_location"
	KeyNudgeLocation      = "nudge_location"
	KeyNudgeEvidence      = "nudge_evidence"
	KeyConfirmPending     = "confirm_pending"
	KeyFinalized          = "finalized"
	KeyFinalizeIncomplete = "finalize_incomplete"
	KeyCancelAck          = "cancel_ack"
	KeyDraftGone          = "draft_gone"
	KeyModelUnavailable   = "model_unavailable"
)

var defaults = map[string]string{
	KeyGreeting:           "Hola 👋 ¿Qué deseas denunciar hoy? (Ej: basura, alumbrado, vías...)",
	KeyAskType:            "¿Qué tipo de problema deseas reportar? Por ejemplo: basura, alumbrado, vías.",
	KeyAskDescription:     "Cuéntame qué está pasando, con el mayor detalle posible.",
	KeyAskLocation:        "¿En qué lugar ocurre? Puedes enviarme la ubicación o una dirección de referencia.",
	KeyNudgeLocation:      "📍 Si puedes, compárteme la ubicación exacta del problema.",
	KeyNudgeEvidence:      "📷 Una foto o video del problema ayuda mucho a los técnicos.",
	KeyConfirmPending:     "Aún faltan datos para enviar tu denuncia: %s. ¿Me los compartes?",
	KeyFinalized:          "✅ ¡Listo! Tu denuncia fue registrada con el número %s. Puedes consultarla cuando quieras.",
	KeyFinalizeIncomplete: "No pude registrar la denuncia todavía, faltan: %s.",
	KeyCancelAck:          "Entendido, no envío nada por ahora. El borrador sigue guardado unos minutos por si cambias de opinión.",
	KeyDraftGone:          "No encuentro un borrador activo. Si ya enviaste la denuncia, puedes verla en tus denuncias.",
	KeyModelUnavailable:   "Tuve un problema procesando tu mensaje 😓 ¿Puedes intentarlo de nuevo?",
}

// Catalog resolves reply keys to phrases. Safe for concurrent use.
type Catalog struct {
	overrides map[string]string
	mu        sync.RWMutex
}

// NewCatalog returns a catalog backed by the embedded defaults.
func NewCatalog() *Catalog {
	return &Catalog{overrides: make(map[string]string)}
}

// NewCatalogFromFile loads per-deployment overrides from a flat JSON object
// of key to phrase. Unknown keys are accepted and simply never looked up.
func NewCatalogFromFile(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read replies file: %w", err)
	}
	var overrides map[string]string
	if err := json.Unmarshal(data, &overrides); err != nil {
		return nil, fmt.Errorf("failed to parse replies file: %w", err)
	}
	return &Catalog{overrides: overrides}, nil
}

// Get returns the phrase for key, preferring the deployment override. An
// unknown key returns the key itself so a miss is visible, never silent.
func (c *Catalog) Get(key string) string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if v, ok := c.overrides[key]; ok {
		return v
	}
	if v, ok := defaults[key]; ok {
		return v
	}
	return key
}

// Getf formats a parameterized phrase.
func (c *Catalog) Getf(key string, args ...any) string {
	return fmt.Sprintf(c.Get(key), args...)
}
