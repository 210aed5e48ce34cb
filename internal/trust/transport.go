package trust

import (
	"crypto/sha256"
	"crypto/tls"
	"crypto/x509"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"sync"
)

// ErrPinMismatch — живой сертификат не совпал с запиненным.
// Трактуется как возможный перехват, никогда как плановая ротация:
// клиент обязан упасть, а не тихо откатиться на незащищённый канал.
var ErrPinMismatch = errors.New("server certificate fingerprint mismatch")

// Transport — http.RoundTripper поверх TLS без верификации цепочки:
// её целиком заменяет пиннинг. Первый успешный контакт запоминает
// отпечаток (это единственное неустранимое окно доверия — CA нет),
// дальше требуется точное совпадение.
type Transport struct {
	store Store
	base  *http.Transport

	mu     sync.Mutex
	pinned string
	loaded bool
}

func NewTransport(store Store) *Transport {
	t := &Transport{store: store}
	t.base = &http.Transport{
		TLSClientConfig: &tls.Config{
			// hostname/chain проверки выключены осознанно:
			// self-signed сертификат, доверие — только отпечаток
			InsecureSkipVerify:    true,
			VerifyPeerCertificate: t.verifyPeer,
		},
	}
	return t
}

func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	return t.base.RoundTrip(req)
}

// verifyPeer сверяет sha-256 DER-байтов leaf-сертификата с пином.
func (t *Transport) verifyPeer(rawCerts [][]byte, _ [][]*x509.Certificate) error {
	if len(rawCerts) == 0 {
		return errors.New("no peer certificate")
	}
	sum := sha256.Sum256(rawCerts[0])
	fp := hex.EncodeToString(sum[:])

	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.loaded {
		pinned, err := t.store.Load()
		if err != nil {
			return fmt.Errorf("load pinned fingerprint: %w", err)
		}
		t.pinned = pinned
		t.loaded = true
	}

	// trust-on-first-use: пина ещё нет — принимаем и запоминаем
	if t.pinned == "" {
		if err := t.store.Save(fp); err != nil {
			return fmt.Errorf("persist fingerprint: %w", err)
		}
		t.pinned = fp
		return nil
	}

	if t.pinned != fp {
		return fmt.Errorf("%w: pinned %s, got %s", ErrPinMismatch, t.pinned, fp)
	}
	return nil
}

// IsPinMismatch распознаёт ошибку пиннинга сквозь обёртки net/http
// (url.Error, CertificateVerificationError).
func IsPinMismatch(err error) bool {
	return errors.Is(err, ErrPinMismatch)
}
