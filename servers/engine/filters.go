package engine

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"io"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/gzip"
	"golang.org/x/crypto/hkdf"

	"github.com/netpulse-io/socketio/servers/engine/config"
)

// sioeMagic prefixes ciphertext so the decode side can tell an encrypted
// MESSAGE payload from a plaintext one (SPEC_FULL.md §B.1).
var sioeMagic = [4]byte{0x53, 0x49, 0x4F, 0x45}

// codec is a transparent transport-level filter pair.
type codec struct {
	encode func([]byte) ([]byte, error)
	decode func([]byte) ([]byte, error)
}

func compressionCodec(kind config.CompressionKind) *codec {
	switch kind {
	case config.CompressionGzip:
		return &codec{encode: gzipEncode, decode: gzipDecode}
	case config.CompressionDeflate:
		return &codec{encode: deflateEncode, decode: deflateDecode}
	case config.CompressionBrotli:
		return &codec{encode: brotliEncode, decode: brotliDecode}
	default:
		return nil
	}
}

func gzipEncode(p []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := gzip.NewWriter(&buf)
	if _, err := w.Write(p); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func gzipDecode(p []byte) ([]byte, error) {
	r, err := gzip.NewReader(bytes.NewReader(p))
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}

func deflateEncode(p []byte) ([]byte, error) {
	var buf bytes.Buffer
	w, err := flate.NewWriter(&buf, flate.DefaultCompression)
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(p); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func deflateDecode(p []byte) ([]byte, error) {
	r := flate.NewReader(bytes.NewReader(p))
	defer r.Close()
	return io.ReadAll(r)
}

func brotliEncode(p []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := brotli.NewWriter(&buf)
	if _, err := w.Write(p); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func brotliDecode(p []byte) ([]byte, error) {
	r := brotli.NewReader(bytes.NewReader(p))
	return io.ReadAll(r)
}

// encryptionCodec derives a key via HKDF-SHA256 and returns an AES-GCM or
// AES-CBC codec per cfg.Algorithm, prefixing/expecting the SIOE magic
// header around ciphertext (SPEC_FULL.md §B.1).
func encryptionCodec(cfg *config.Encryption) (*codec, error) {
	if cfg == nil || cfg.Algorithm == config.EncryptionNone {
		return nil, nil
	}
	keySize := 16
	gcm := true
	switch cfg.Algorithm {
	case config.EncryptionAES128GCM:
		keySize, gcm = 16, true
	case config.EncryptionAES256GCM:
		keySize, gcm = 32, true
	case config.EncryptionAES128CBC:
		keySize, gcm = 16, false
	case config.EncryptionAES256CBC:
		keySize, gcm = 32, false
	default:
		return nil, errors.New("engine.io: unknown encryption algorithm")
	}

	key := make([]byte, keySize)
	kdf := hkdf.New(sha256.New, []byte(cfg.Key), nil, []byte("socketio-engine-transport"))
	if _, err := io.ReadFull(kdf, key); err != nil {
		return nil, err
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}

	if gcm {
		gcmAEAD, err := cipher.NewGCM(block)
		if err != nil {
			return nil, err
		}
		return &codec{
			encode: func(p []byte) ([]byte, error) {
				nonce := make([]byte, gcmAEAD.NonceSize())
				if _, err := rand.Read(nonce); err != nil {
					return nil, err
				}
				sealed := gcmAEAD.Seal(nonce, nonce, p, nil)
				return append(append([]byte{}, sioeMagic[:]...), sealed...), nil
			},
			decode: func(p []byte) ([]byte, error) {
				body, err := stripMagic(p)
				if err != nil {
					return nil, err
				}
				ns := gcmAEAD.NonceSize()
				if len(body) < ns {
					return nil, ErrDecryptionFailed
				}
				plain, err := gcmAEAD.Open(nil, body[:ns], body[ns:], nil)
				if err != nil {
					return nil, ErrDecryptionFailed
				}
				return plain, nil
			},
		}, nil
	}

	return &codec{
		encode: func(p []byte) ([]byte, error) {
			padded := pkcs7Pad(p, aes.BlockSize)
			iv := make([]byte, aes.BlockSize)
			if _, err := rand.Read(iv); err != nil {
				return nil, err
			}
			out := make([]byte, len(padded))
			cipher.NewCBCEncrypter(block, iv).CryptBlocks(out, padded)
			result := append(append([]byte{}, sioeMagic[:]...), iv...)
			return append(result, out...), nil
		},
		decode: func(p []byte) ([]byte, error) {
			body, err := stripMagic(p)
			if err != nil {
				return nil, err
			}
			if len(body) < aes.BlockSize || len(body)%aes.BlockSize != 0 {
				return nil, ErrDecryptionFailed
			}
			iv, ct := body[:aes.BlockSize], body[aes.BlockSize:]
			if len(ct) == 0 {
				return nil, ErrDecryptionFailed
			}
			out := make([]byte, len(ct))
			cipher.NewCBCDecrypter(block, iv).CryptBlocks(out, ct)
			plain, err := pkcs7Unpad(out)
			if err != nil {
				return nil, ErrDecryptionFailed
			}
			return plain, nil
		},
	}, nil
}

func stripMagic(p []byte) ([]byte, error) {
	if len(p) < len(sioeMagic) || !bytes.Equal(p[:len(sioeMagic)], sioeMagic[:]) {
		return nil, ErrDecryptionFailed
	}
	return p[len(sioeMagic):], nil
}

// isEncrypted reports whether p carries the SIOE magic header, without
// attempting to decrypt it.
func isEncrypted(p []byte) bool {
	return len(p) >= len(sioeMagic) && bytes.Equal(p[:len(sioeMagic)], sioeMagic[:])
}

func pkcs7Pad(p []byte, blockSize int) []byte {
	padLen := blockSize - len(p)%blockSize
	padding := bytes.Repeat([]byte{byte(padLen)}, padLen)
	return append(p, padding...)
}

func pkcs7Unpad(p []byte) ([]byte, error) {
	if len(p) == 0 {
		return nil, errors.New("engine.io: empty plaintext")
	}
	padLen := int(p[len(p)-1])
	if padLen == 0 || padLen > len(p) {
		return nil, errors.New("engine.io: invalid padding")
	}
	return p[:len(p)-padLen], nil
}
