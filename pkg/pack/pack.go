/*
Copyright 2011 Google Inc.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

     http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package pack

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
	"github.com/natefinch/atomic"
)

// KV is one key/value pair read from a pack.
type KV struct {
	Key   []byte
	Value []byte
}

// slotState is the three-way tag of a lazy slot: not loaded yet, loaded
// successfully, or loaded and failed. Modeled as an explicit sum type
// rather than a sentinel nil, per the lazy multi-state slot pattern this
// cache is built around.
type slotState int

const (
	slotPending slotState = iota
	slotValue
	slotFailed
)

// Slot is a lazily-populated value that is either Pending, a Value, or
// Failed with an error. Pack's keys and contents, and PackScope's meta and
// packs, are all Slots.
type Slot[T any] struct {
	state slotState
	value T
	err   error
}

// Pending reports whether the slot has not yet been populated.
func (s *Slot[T]) Pending() bool { return s.state == slotPending }

// Ready reports whether the slot holds a value.
func (s *Slot[T]) Ready() bool { return s.state == slotValue }

// Failed reports whether the slot failed to load.
func (s *Slot[T]) Failed() bool { return s.state == slotFailed }

// Set transitions the slot to Value.
func (s *Slot[T]) Set(v T) { s.state, s.value, s.err = slotValue, v, nil }

// SetErr transitions the slot to Failed.
func (s *Slot[T]) SetErr(err error) {
	var zero T
	s.state, s.value, s.err = slotFailed, zero, err
}

// Get returns the slot's value, or ErrNotReady if Pending, or the stored
// error if Failed.
func (s *Slot[T]) Get() (T, error) {
	switch s.state {
	case slotValue:
		return s.value, nil
	case slotFailed:
		var zero T
		return zero, s.err
	default:
		var zero T
		return zero, ErrNotReady
	}
}

// Pack is one on-disk pack file: a batch of key/value pairs co-located by
// bucket. Keys and contents are independently lazy; either may be read
// without the other (ensure_pack_keys runs before ensure_pack_contents,
// but a scope that only needs keys, e.g. to validate integrity, never
// pays for contents).
type Pack struct {
	Path     string
	Keys     Slot[[][]byte]
	Contents Slot[[]KV]
}

// New returns an unloaded Pack backed by path.
func New(path string) *Pack {
	return &Pack{Path: path}
}

// Write encodes the pack to its Path, replacing any existing file.
// Both Keys and Contents must be Ready and of equal length. The file is
// written to a temporary sibling and renamed into place so a reader never
// observes a partially-written pack (resolving the source's spurious
// File::create-then-remove sequence).
func (p *Pack) Write() error {
	keys, err := p.Keys.Get()
	if err != nil {
		return fmt.Errorf("pack %s: keys %w", p.Path, ErrNotReady)
	}
	contents, err := p.Contents.Get()
	if err != nil {
		return fmt.Errorf("pack %s: contents %w", p.Path, ErrNotReady)
	}
	if len(keys) != len(contents) {
		return fmt.Errorf("pack %s: %d keys but %d contents", p.Path, len(keys), len(contents))
	}
	if len(keys) == 0 {
		return fmt.Errorf("pack %s: refusing to write a pack with no keys", p.Path)
	}

	var buf bytes.Buffer
	lens := make([]string, len(keys))
	for i, k := range keys {
		lens[i] = strconv.Itoa(len(k))
	}
	buf.WriteString(strings.Join(lens, " "))
	buf.WriteByte('\n')
	for _, k := range keys {
		buf.Write(k)
	}
	buf.WriteByte('\n')
	for i, kv := range contents {
		if bytes.IndexByte(kv.Value, '\n') >= 0 {
			return fmt.Errorf("pack %s: value for key %d: %w", p.Path, i, ErrMalformedValue)
		}
		buf.Write(kv.Value)
		buf.WriteByte('\n')
	}

	if err := atomic.WriteFile(p.Path, &buf); err != nil {
		return fmt.Errorf("pack %s: write failed: %w", p.Path, err)
	}
	return nil
}

// ReadKeys reads the key-length line and key-blob line of the pack at
// path, returning the individually sliced keys in insertion order.
func ReadKeys(path string) ([][]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrMissing, path)
		}
		return nil, err
	}
	defer f.Close()

	r := bufio.NewReader(f)
	lengthLine, err := r.ReadString('\n')
	if err != nil {
		return nil, fmt.Errorf("%s: reading key-length line: %w", path, ErrMalformedHeader)
	}
	lengthLine = strings.TrimSuffix(lengthLine, "\n")

	var lens []int
	if lengthLine != "" {
		for _, field := range strings.Split(lengthLine, " ") {
			n, err := strconv.Atoi(field)
			if err != nil || n < 0 {
				return nil, fmt.Errorf("%s: bad key length %q: %w", path, field, ErrMalformedHeader)
			}
			lens = append(lens, n)
		}
	}

	total := 0
	for _, n := range lens {
		total += n
	}
	blob := make([]byte, total)
	if _, err := io.ReadFull(r, blob); err != nil {
		return nil, fmt.Errorf("%s: key blob shorter than header promises: %w", path, ErrTruncated)
	}
	if _, err := r.ReadByte(); err != nil {
		return nil, fmt.Errorf("%s: missing key-blob terminator: %w", path, ErrTruncated)
	}

	keys := make([][]byte, len(lens))
	off := 0
	for i, n := range lens {
		keys[i] = blob[off : off+n]
		off += n
	}
	return keys, nil
}

// ReadContents reads exactly len(keys) newline-delimited values following
// the header of the pack at path, pairing them positionally with keys.
func ReadContents(path string, keys [][]byte) ([]KV, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrMissing, path)
		}
		return nil, err
	}
	defer f.Close()

	r := bufio.NewReader(f)
	if _, err := r.ReadString('\n'); err != nil {
		return nil, fmt.Errorf("%s: reading key-length line: %w", path, ErrTruncated)
	}

	total := 0
	for _, k := range keys {
		total += len(k)
	}
	skip := make([]byte, total)
	if _, err := io.ReadFull(r, skip); err != nil {
		return nil, fmt.Errorf("%s: key blob shorter than header promises: %w", path, ErrTruncated)
	}
	if _, err := r.ReadByte(); err != nil {
		return nil, fmt.Errorf("%s: missing key-blob terminator: %w", path, ErrTruncated)
	}

	contents := make([]KV, 0, len(keys))
	for i, k := range keys {
		line, err := r.ReadString('\n')
		if err != nil {
			if err == io.EOF && i == len(keys)-1 && line != "" {
				// Tolerated: the final value line has no trailing newline.
			} else {
				return nil, fmt.Errorf("%s: pack keys don't match their contents: %w", path, ErrTruncated)
			}
		}
		value := strings.TrimSuffix(line, "\n")
		key := make([]byte, len(k))
		copy(key, k)
		contents = append(contents, KV{Key: key, Value: []byte(value)})
	}
	return contents, nil
}

// Validate reports whether the pack file at path still matches the
// integrity hash computed at save time, by recomputing the hash from the
// given keys plus the file's current size and modification time. Any I/O
// error is returned rather than conflated with "invalid"; callers
// (PackScope.Validate) treat an error identically to a false result.
func Validate(path string, keys [][]byte, expectedHash string) (bool, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return false, err
	}
	return hashPack(keys, fi.Size(), fi.ModTime().UnixNano()) == expectedHash, nil
}

// hashPack computes the pack integrity hash: xxh64 of the concatenated
// keys, followed by the key count, file size, and modification time in
// nanoseconds, rendered as 16 lowercase hex digits.
func hashPack(keys [][]byte, size, mtimeNanos int64) string {
	h := xxhash.New()
	for _, k := range keys {
		h.Write(k)
	}
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], uint64(len(keys)))
	h.Write(buf[:])
	binary.LittleEndian.PutUint64(buf[:], uint64(size))
	h.Write(buf[:])
	binary.LittleEndian.PutUint64(buf[:], uint64(mtimeNanos))
	h.Write(buf[:])
	return fmt.Sprintf("%016x", h.Sum64())
}

// bucketID returns the bucket a key belongs to: a stable 64-bit hash of
// the key, modulo buckets.
func bucketID(key []byte, buckets int) int {
	return int(xxhash.Sum64(key) % uint64(buckets))
}
