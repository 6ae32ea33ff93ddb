package abcfile

import (
	"fmt"
	"os"

	"github.com/fxamacker/cbor/v2"
)

// cborEncMode uses canonical encoding so identical files encode identically.
var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("abcfile: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

// Marshal serializes a File to CBOR bytes.
func Marshal(f *File) ([]byte, error) {
	return cborEncMode.Marshal(f)
}

// Unmarshal deserializes and validates a File from CBOR bytes.
func Unmarshal(data []byte) (*File, error) {
	var f File
	if err := cbor.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("abcfile: unmarshal: %w", err)
	}
	if err := Validate(&f); err != nil {
		return nil, err
	}
	return &f, nil
}

// Read loads a File from disk.
func Read(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("abcfile: read %s: %w", path, err)
	}
	f, err := Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if f.Name == "" {
		f.Name = path
	}
	return f, nil
}

// Write stores a File on disk.
func Write(path string, f *File) error {
	data, err := Marshal(f)
	if err != nil {
		return fmt.Errorf("abcfile: marshal %s: %w", path, err)
	}
	return os.WriteFile(path, data, 0644)
}
