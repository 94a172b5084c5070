package pay

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"agromart/apperr"
	"agromart/logging"
	"agromart/models"
	"agromart/utils"

	"github.com/julienschmidt/httprouter"
	"go.uber.org/zap"
)

const idempotencyTTL = 24 * time.Hour

// ErrDuplicateKey is returned by IdempotencyStore.Begin when the key exists.
var ErrDuplicateKey = errors.New("idempotency key already used")

type IdempotencyStore interface {
	// Begin inserts a placeholder. On ErrDuplicateKey the stored record is returned.
	Begin(ctx context.Context, rec models.IdempotencyRecord) (*models.IdempotencyRecord, error)
	Complete(ctx context.Context, key string, status int, body []byte) error
	Release(ctx context.Context, key string) error
}

func computeRequestHash(r *http.Request, bodyBytes []byte, userID string) string {
	h := sha256.New()
	h.Write([]byte(r.Method + ":" + r.URL.Path + ":" + userID + ":"))
	h.Write(bodyBytes)
	return hex.EncodeToString(h.Sum(nil))
}

// captureResponseWriter wraps http.ResponseWriter to capture status and body.
type captureResponseWriter struct {
	http.ResponseWriter
	statusCode  int
	buf         bytes.Buffer
	wroteHeader bool
}

func (c *captureResponseWriter) WriteHeader(statusCode int) {
	if !c.wroteHeader {
		c.statusCode = statusCode
		c.wroteHeader = true
		c.ResponseWriter.WriteHeader(statusCode)
	}
}

func (c *captureResponseWriter) Write(b []byte) (int, error) {
	if !c.wroteHeader {
		c.WriteHeader(http.StatusOK)
	}
	c.buf.Write(b)
	return c.ResponseWriter.Write(b)
}

// chargedFailure reports whether an error body says the payment went through
// but the order was not saved. Retrying such a request would charge again.
func chargedFailure(body []byte) bool {
	var resp struct {
		Error string `json:"error"`
	}
	return json.Unmarshal(body, &resp) == nil && resp.Error == string(apperr.KindInconsistency)
}

// Idempotency replays the stored response when a client resubmits a request
// with the same Idempotency-Key header. It must run after Authenticate.
//   - no header: pass-through
//   - first use: run the handler and store its response (5xx is not stored,
//     except an inconsistency, where money may already have moved)
//   - same key, different payload: 409
//   - same key, still running: 409
//   - same key, finished: stored status and body
func Idempotency(store IdempotencyStore) func(httprouter.Handle) httprouter.Handle {
	return func(next httprouter.Handle) httprouter.Handle {
		return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
			key := r.Header.Get("Idempotency-Key")
			if key == "" {
				next(w, r, ps)
				return
			}

			var userID string
			if id, ok := utils.IdentityFromRequest(r); ok {
				userID = id.UserID.Hex()
			}

			bodyBytes, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
			if err != nil {
				utils.RespondWithError(w, apperr.Validation("failed to read request body"))
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(bodyBytes))

			now := time.Now()
			rec := models.IdempotencyRecord{
				Key:         userID + ":" + key,
				Method:      r.Method,
				Path:        r.URL.Path,
				UserID:      userID,
				RequestHash: computeRequestHash(r, bodyBytes, userID),
				CreatedAt:   now,
				ExpiresAt:   now.Add(idempotencyTTL),
			}

			ctx := r.Context()
			existing, err := store.Begin(ctx, rec)
			switch {
			case err == nil:
				crw := &captureResponseWriter{ResponseWriter: w, statusCode: http.StatusOK}
				next(crw, r, ps)

				// detached so a client disconnect does not lose the stored response
				saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
				defer cancel()
				if crw.statusCode >= http.StatusInternalServerError && !chargedFailure(crw.buf.Bytes()) {
					err = store.Release(saveCtx, rec.Key)
				} else {
					err = store.Complete(saveCtx, rec.Key, crw.statusCode, crw.buf.Bytes())
				}
				if err != nil {
					logging.FromContext(ctx).Warn("idempotency record not saved",
						zap.String("key", rec.Key), zap.Error(err))
				}
				return
			case !errors.Is(err, ErrDuplicateKey) || existing == nil:
				utils.RespondWithError(w, apperr.Internal("idempotency lookup failed", err))
				return
			}

			if existing.RequestHash != rec.RequestHash {
				utils.RespondWithError(w, apperr.Conflict("idempotency key reused with a different request"))
				return
			}
			if !existing.Done {
				utils.RespondWithError(w, apperr.Conflict("a request with this idempotency key is in progress"))
				return
			}

			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("Idempotent-Replayed", "true")
			w.WriteHeader(existing.Status)
			_, _ = w.Write(existing.Body)
		}
	}
}
