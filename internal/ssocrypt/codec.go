// internal/ssocrypt/codec.go
package ssocrypt

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/md5"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"

	"go.uber.org/zap"
)

// Context is the canonical identity record decoded from an SSO payload.
// Fields are nil when the payload did not carry them or decoding failed.
// A Context is request-scoped and never persisted.
type Context struct {
	UserID           *string `json:"userId"`
	CompanyID        *string `json:"companyId"`
	Role             *string `json:"role"`
	Type             *string `json:"type"`
	ActiveLocationID *string `json:"activeLocationId"`
	UserName         *string `json:"userName"`
	Email            *string `json:"email"`
}

// Empty reports whether no canonical field was recovered. Callers treat an
// empty context as unauthenticated.
func (c Context) Empty() bool {
	return c.UserID == nil && c.CompanyID == nil && c.Role == nil && c.Type == nil &&
		c.ActiveLocationID == nil && c.UserName == nil && c.Email == nil
}

// Payload is the tagged union of the two wire shapes the platform sends.
// Exactly one branch is set; ParsePayload dispatches on structure, not on
// runtime type inspection.
type Payload struct {
	Structured *StructuredPayload
	Opaque     string
}

// StructuredPayload is the iv/cipherText/tag shape, each field URL-safe
// base64.
type StructuredPayload struct {
	IV         string `json:"iv"`
	CipherText string `json:"cipherText"`
	Tag        string `json:"tag"`
}

// ParsePayload classifies a raw encryptedData value. A JSON object carrying
// iv, cipherText and tag selects the structured branch; a JSON string or
// bare string selects the opaque branch.
func ParsePayload(raw json.RawMessage) Payload {
	var sp StructuredPayload
	if err := json.Unmarshal(raw, &sp); err == nil && sp.IV != "" && sp.CipherText != "" && sp.Tag != "" {
		return Payload{Structured: &sp}
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return Payload{Opaque: s}
	}
	return Payload{Opaque: string(raw)}
}

// Codec decrypts SSO payloads with a shared secret. Decode never fails: any
// decryption or parse problem degrades to an all-nil Context.
type Codec struct {
	secret string
	log    *zap.SugaredLogger
}

func NewCodec(secret string, log *zap.SugaredLogger) *Codec {
	return &Codec{secret: secret, log: log}
}

// Configured reports whether a shared secret is present. An unconfigured
// codec is a server configuration error, the one condition callers surface
// as a hard failure.
func (c *Codec) Configured() bool { return c.secret != "" }

func (c *Codec) Decode(p Payload) Context {
	var plain []byte
	var err error
	switch {
	case p.Structured != nil:
		plain, err = c.decryptStructured(*p.Structured)
	case p.Opaque != "":
		plain, err = c.decryptOpaque(p.Opaque)
	default:
		return Context{}
	}
	if err != nil {
		c.log.Debugw("sso decode failed", "err", err)
		return Context{}
	}
	var fields map[string]any
	if err := json.Unmarshal(plain, &fields); err != nil {
		c.log.Debugw("sso payload not a JSON object", "err", err)
		return Context{}
	}
	return normalize(fields)
}

// decryptStructured handles the iv/cipherText/tag shape: AES-256-GCM with
// the key derived as SHA-256 of the shared secret.
func (c *Codec) decryptStructured(sp StructuredPayload) ([]byte, error) {
	iv, err := b64(sp.IV)
	if err != nil {
		return nil, err
	}
	ct, err := b64(sp.CipherText)
	if err != nil {
		return nil, err
	}
	tag, err := b64(sp.Tag)
	if err != nil {
		return nil, err
	}
	key := sha256.Sum256([]byte(c.secret))
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCMWithNonceSize(block, len(iv))
	if err != nil {
		return nil, err
	}
	// GCM in the stdlib expects ciphertext||tag.
	return gcm.Open(nil, iv, append(ct, tag...), nil)
}

// decryptOpaque handles the single-string shape: the OpenSSL passphrase
// scheme ("Salted__" + 8-byte salt, MD5 EVP key derivation, AES-256-CBC).
func (c *Codec) decryptOpaque(s string) ([]byte, error) {
	raw, err := b64(s)
	if err != nil {
		return nil, err
	}
	if len(raw) < 16 || string(raw[:8]) != "Salted__" {
		return nil, errMalformed
	}
	salt := raw[8:16]
	body := raw[16:]
	if len(body) == 0 || len(body)%aes.BlockSize != 0 {
		return nil, errMalformed
	}
	key, iv := evpKDF([]byte(c.secret), salt, 32, aes.BlockSize)
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	plain := make([]byte, len(body))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(plain, body)
	return pkcs7Unpad(plain)
}

// evpKDF derives key material the way OpenSSL's EVP_BytesToKey does with
// MD5: D_i = MD5(D_{i-1} || passphrase || salt), concatenated until keyLen
// plus ivLen bytes are available.
func evpKDF(pass, salt []byte, keyLen, ivLen int) (key, iv []byte) {
	var derived []byte
	var prev []byte
	for len(derived) < keyLen+ivLen {
		h := md5.New()
		h.Write(prev)
		h.Write(pass)
		h.Write(salt)
		prev = h.Sum(nil)
		derived = append(derived, prev...)
	}
	return derived[:keyLen], derived[keyLen : keyLen+ivLen]
}

func pkcs7Unpad(b []byte) ([]byte, error) {
	if len(b) == 0 {
		return nil, errMalformed
	}
	n := int(b[len(b)-1])
	if n == 0 || n > aes.BlockSize || n > len(b) {
		return nil, errMalformed
	}
	for _, p := range b[len(b)-n:] {
		if int(p) != n {
			return nil, errMalformed
		}
	}
	return b[:len(b)-n], nil
}

// b64 decodes URL-safe base64, tolerating standard alphabets and missing
// padding since upstream is not consistent about either.
func b64(s string) ([]byte, error) {
	for _, enc := range []*base64.Encoding{
		base64.URLEncoding, base64.RawURLEncoding,
		base64.StdEncoding, base64.RawStdEncoding,
	} {
		if b, err := enc.DecodeString(s); err == nil {
			return b, nil
		}
	}
	return nil, errMalformed
}
