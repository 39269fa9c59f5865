// Copyright ©2025 The Hmat Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package dense

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
)

var (
	errTooBig    = errors.New("dense: resulting data slice too big")
	errBadBuffer = errors.New("dense: data buffer size mismatch")
	errBadSize   = errors.New("dense: invalid dimension")
)

const sizeInt64 = 8

// MarshalBinary encodes the tile in native byte order:
//
//	0 -  7  number of rows    (int64)
//	8 - 15  number of columns (int64)
//	16 - .. elements, column-major
//
// No endianness translation is performed; the encoding round-trips on
// the machine that produced it.
func (m *Matrix[T]) MarshalBinary() ([]byte, error) {
	var z T
	sizeT := binary.Size(z)
	bufLen := int64(m.rows)*int64(m.cols)*int64(sizeT) + 2*sizeInt64
	if bufLen <= 0 {
		// bufLen has wrapped around.
		return nil, errTooBig
	}
	buf := bytes.NewBuffer(make([]byte, 0, bufLen))
	binary.Write(buf, binary.NativeEndian, int64(m.rows))
	binary.Write(buf, binary.NativeEndian, int64(m.cols))
	for j := 0; j < m.cols; j++ {
		if err := binary.Write(buf, binary.NativeEndian, m.ColView(j)); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

// UnmarshalBinary decodes a tile written by MarshalBinary into the
// receiver, allocating compact storage. See MarshalBinary for the
// layout. The receiver must be empty.
func (m *Matrix[T]) UnmarshalBinary(data []byte) error {
	if m.rows != 0 || m.cols != 0 {
		panic(Error{"dense: unmarshal into non-empty matrix"})
	}
	var z T
	sizeT := binary.Size(z)
	buf := bytes.NewReader(data)
	var rows, cols int64
	if err := binary.Read(buf, binary.NativeEndian, &rows); err != nil {
		return err
	}
	if err := binary.Read(buf, binary.NativeEndian, &cols); err != nil {
		return err
	}
	if rows < 0 || cols < 0 {
		return errBadSize
	}
	size := rows * cols
	if size < 0 || size > int64(int(^uint(0)>>1)) {
		return errTooBig
	}
	if int64(len(data)) != size*int64(sizeT)+2*sizeInt64 {
		return errBadBuffer
	}
	m.rows, m.cols = int(rows), int(cols)
	m.ld = max(m.rows, 1)
	m.data = make([]T, m.ld*m.cols)
	return binary.Read(buf, binary.NativeEndian, m.data[:int(size)])
}

// WriteTo writes the MarshalBinary encoding of the tile to w.
func (m *Matrix[T]) WriteTo(w io.Writer) (int64, error) {
	b, err := m.MarshalBinary()
	if err != nil {
		return 0, err
	}
	n, err := w.Write(b)
	return int64(n), err
}

// ReadFrom reads a tile encoding from r into the empty receiver.
func (m *Matrix[T]) ReadFrom(r io.Reader) (int64, error) {
	var z T
	sizeT := binary.Size(z)
	head := make([]byte, 2*sizeInt64)
	n, err := io.ReadFull(r, head)
	if err != nil {
		return int64(n), err
	}
	rows := int64(binary.NativeEndian.Uint64(head))
	cols := int64(binary.NativeEndian.Uint64(head[sizeInt64:]))
	if rows < 0 || cols < 0 {
		return int64(n), errBadSize
	}
	body := make([]byte, rows*cols*int64(sizeT))
	nb, err := io.ReadFull(r, body)
	if err != nil {
		return int64(n + nb), err
	}
	return int64(n + nb), m.UnmarshalBinary(append(head, body...))
}
