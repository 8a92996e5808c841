package handler

import (
	"net/http"
	"strconv"

	"github.com/rohidaprem/crypto-order-book/internal/domain"
)

// defaultBookDepth is the number of levels per side returned when the query
// does not specify one.
const defaultBookDepth = 20

// maxBookDepth caps the per-side depth a client can request.
const maxBookDepth = 500

// BookReader is the read surface the book handler needs from the store.
type BookReader interface {
	ReadTop(n int) domain.OrderBook
}

// BookHandler serves read-only views of the current order book.
type BookHandler struct {
	books BookReader
}

// NewBookHandler creates a BookHandler reading from the given store.
func NewBookHandler(books BookReader) *BookHandler {
	return &BookHandler{books: books}
}

// GetBook returns the top-N levels of the current committed book.
// GET /api/book?depth=20
func (h *BookHandler) GetBook(w http.ResponseWriter, r *http.Request) {
	depth := defaultBookDepth
	if v := r.URL.Query().Get("depth"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "depth must be a positive integer")
			return
		}
		depth = min(n, maxBookDepth)
	}

	bookSnap := h.books.ReadTop(depth)
	if bookSnap.Empty() {
		writeError(w, http.StatusServiceUnavailable, domain.ErrStoreUnavailable.Error())
		return
	}

	writeJSON(w, http.StatusOK, bookSnap)
}
