package handlers

import (
	"net/http"

	qrcode "github.com/skip2/go-qrcode"
)

// GET /admin/shoots/{id}/qr.png
// The code encodes the shoot's client share link.
func (h *Handler) ShootQR(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r, "id")
	if !ok {
		http.NotFound(w, r)
		return
	}
	sh, err := h.Shoots.Shoot(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	png, err := qrcode.Encode(h.shareURL(sh.ShareToken), qrcode.Medium, 256)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(png)
}
