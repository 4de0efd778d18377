package engine

import (
	"bytes"
	"testing"

	"github.com/netpulse-io/socketio/servers/engine/config"
)

func TestCompressionRoundTrip(t *testing.T) {
	for _, kind := range []config.CompressionKind{config.CompressionGzip, config.CompressionDeflate, config.CompressionBrotli} {
		c := compressionCodec(kind)
		if c == nil {
			t.Fatalf("expected codec for %v", kind)
		}
		original := []byte(`{"hello":"world","n":42}`)
		compressed, err := c.encode(original)
		if err != nil {
			t.Fatalf("%v encode error: %v", kind, err)
		}
		decoded, err := c.decode(compressed)
		if err != nil {
			t.Fatalf("%v decode error: %v", kind, err)
		}
		if !bytes.Equal(decoded, original) {
			t.Fatalf("%v round trip mismatch: got %q want %q", kind, decoded, original)
		}
	}
}

func TestCompressionCodecNoneReturnsNil(t *testing.T) {
	if compressionCodec(config.CompressionNone) != nil {
		t.Fatal("expected nil codec for no compression")
	}
}

func TestEncryptionGCMRoundTrip(t *testing.T) {
	for _, alg := range []config.EncryptionAlgorithm{config.EncryptionAES128GCM, config.EncryptionAES256GCM} {
		c, err := encryptionCodec(&config.Encryption{Key: "super-secret-key-material", Algorithm: alg})
		if err != nil {
			t.Fatalf("%v codec error: %v", alg, err)
		}
		plain := []byte("ping the other node")
		ciphertext, err := c.encode(plain)
		if err != nil {
			t.Fatalf("%v encode error: %v", alg, err)
		}
		if !bytes.HasPrefix(ciphertext, sioeMagic[:]) {
			t.Fatalf("%v expected magic header prefix", alg)
		}
		decoded, err := c.decode(ciphertext)
		if err != nil {
			t.Fatalf("%v decode error: %v", alg, err)
		}
		if !bytes.Equal(decoded, plain) {
			t.Fatalf("%v round trip mismatch", alg)
		}
	}
}

func TestEncryptionCBCRoundTrip(t *testing.T) {
	c, err := encryptionCodec(&config.Encryption{Key: "another-secret", Algorithm: config.EncryptionAES256CBC})
	if err != nil {
		t.Fatalf("codec error: %v", err)
	}
	plain := []byte("a message that is not block-aligned")
	ciphertext, err := c.encode(plain)
	if err != nil {
		t.Fatalf("encode error: %v", err)
	}
	decoded, err := c.decode(ciphertext)
	if err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if !bytes.Equal(decoded, plain) {
		t.Fatalf("round trip mismatch: got %q want %q", decoded, plain)
	}
}

func TestEncryptionDecodeRejectsMissingMagicHeader(t *testing.T) {
	c, err := encryptionCodec(&config.Encryption{Key: "key", Algorithm: config.EncryptionAES128GCM})
	if err != nil {
		t.Fatalf("codec error: %v", err)
	}
	if _, err := c.decode([]byte("not encrypted at all")); err != ErrDecryptionFailed {
		t.Fatalf("expected ErrDecryptionFailed, got %v", err)
	}
}

func TestEncryptionCodecNoneReturnsNil(t *testing.T) {
	c, err := encryptionCodec(nil)
	if err != nil || c != nil {
		t.Fatal("expected nil codec and no error for nil encryption config")
	}
}

func TestIsEncryptedChecksMagicHeaderOnly(t *testing.T) {
	c, err := encryptionCodec(&config.Encryption{Key: "key", Algorithm: config.EncryptionAES128GCM})
	if err != nil {
		t.Fatalf("codec error: %v", err)
	}
	ciphertext, err := c.encode([]byte("payload"))
	if err != nil {
		t.Fatalf("encode error: %v", err)
	}
	if !isEncrypted(ciphertext) {
		t.Fatal("expected ciphertext to be recognized as encrypted")
	}
	if isEncrypted([]byte("4{\"type\":\"event\"}")) {
		t.Fatal("expected plaintext packet to not be recognized as encrypted")
	}
}
