package handlers

import (
	"encoding/xml"
	"net/http"

	"github.com/crewjam/saml"
)

// MetadataHandler serves this gateway's own SP metadata document. It only
// exists when the backend is running in local mode, since an external
// cluster backend owns its own SP entity.
type MetadataHandler struct {
	metadata func() *saml.EntityDescriptor
}

func NewMetadataHandler(metadata func() *saml.EntityDescriptor) *MetadataHandler {
	return &MetadataHandler{metadata: metadata}
}

func (h *MetadataHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/samlmetadata+xml")
	if err := xml.NewEncoder(w).Encode(h.metadata()); err != nil {
		http.Error(w, "Failed to generate metadata", http.StatusInternalServerError)
	}
}
