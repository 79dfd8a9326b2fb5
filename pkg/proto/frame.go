package proto

import (
	"encoding/binary"
	"io"
	"net"

	"github.com/pkg/errors"
)

// Wire limits per spec.md §4.1. Violating them is fatal for the
// connection: the frame cannot be trusted to be correctly aligned.
const (
	MaxPathLen = 4096
	MaxMetaLen = 4096
	MaxDataLen = 65536

	// ChunkSize is both the wire and write granularity for file transfer,
	// for ordinary writes and for rebalance streaming alike (spec.md §4.5).
	ChunkSize = 64 * 1024
)

const requestHeaderSize = 8 * 4  // batch, id, op_type, flags, total_len, path_len, meta_len, data_len
const responseHeaderSize = 7 * 4 // batch, id, status, flags, total_len, meta_len, data_len

// ErrOversizeFrame is returned when a peer announces a path/meta/data
// length above the wire limits. The caller must treat the connection as
// dead; there is no way to resynchronize on a bad length.
var ErrOversizeFrame = errors.New("proto: frame exceeds wire limits")

// Request is a decoded request frame.
type Request struct {
	Batch  uint32
	ID     uint32
	Op     Op
	Flags  uint32
	Path   []byte
	Meta   []byte
	Data   []byte
}

// WriteTo writes the request as a single framed message in three scatter
// buffers (the header with the path appended, the meta, the data),
// gathered into one vectored write where the underlying connection
// supports it (net.Buffers collapses to as few syscalls as the OS
// allows).
func (r *Request) WriteTo(w io.Writer) (int64, error) {
	if len(r.Path) > MaxPathLen || len(r.Meta) > MaxMetaLen || len(r.Data) > MaxDataLen {
		return 0, ErrOversizeFrame
	}
	hdr := make([]byte, requestHeaderSize, requestHeaderSize+len(r.Path))
	totalLen := uint32(len(r.Path) + len(r.Meta) + len(r.Data))
	binary.LittleEndian.PutUint32(hdr[0:4], r.Batch)
	binary.LittleEndian.PutUint32(hdr[4:8], r.ID)
	binary.LittleEndian.PutUint32(hdr[8:12], uint32(r.Op))
	binary.LittleEndian.PutUint32(hdr[12:16], r.Flags)
	binary.LittleEndian.PutUint32(hdr[16:20], totalLen)
	binary.LittleEndian.PutUint32(hdr[20:24], uint32(len(r.Path)))
	binary.LittleEndian.PutUint32(hdr[24:28], uint32(len(r.Meta)))
	binary.LittleEndian.PutUint32(hdr[28:32], uint32(len(r.Data)))

	bufs := net.Buffers{append(hdr, r.Path...), r.Meta, r.Data}
	n, err := bufs.WriteTo(w)
	return n, err
}

// ReadRequestHeader reads and decodes only the fixed-size request header.
func ReadRequestHeader(r io.Reader) (batch, id uint32, op Op, flags, pathLen, metaLen, dataLen uint32, err error) {
	hdr := make([]byte, requestHeaderSize)
	if _, err = io.ReadFull(r, hdr); err != nil {
		return
	}
	batch = binary.LittleEndian.Uint32(hdr[0:4])
	id = binary.LittleEndian.Uint32(hdr[4:8])
	op = Op(binary.LittleEndian.Uint32(hdr[8:12]))
	flags = binary.LittleEndian.Uint32(hdr[12:16])
	_ = binary.LittleEndian.Uint32(hdr[16:20]) // total_len, recomputed by caller
	pathLen = binary.LittleEndian.Uint32(hdr[20:24])
	metaLen = binary.LittleEndian.Uint32(hdr[24:28])
	dataLen = binary.LittleEndian.Uint32(hdr[28:32])
	if pathLen > MaxPathLen || metaLen > MaxMetaLen || dataLen > MaxDataLen {
		err = ErrOversizeFrame
	}
	return
}

// ReadRequest reads one full request frame, including its variable-length
// body, off r.
func ReadRequest(r io.Reader) (*Request, error) {
	batch, id, op, flags, pathLen, metaLen, dataLen, err := ReadRequestHeader(r)
	if err != nil {
		return nil, err
	}
	req := &Request{Batch: batch, ID: id, Op: op, Flags: flags}
	req.Path = make([]byte, pathLen)
	req.Meta = make([]byte, metaLen)
	req.Data = make([]byte, dataLen)
	if _, err := io.ReadFull(r, req.Path); err != nil {
		return nil, err
	}
	if _, err := io.ReadFull(r, req.Meta); err != nil {
		return nil, err
	}
	if _, err := io.ReadFull(r, req.Data); err != nil {
		return nil, err
	}
	return req, nil
}

// Response is a decoded response frame.
type Response struct {
	Batch  uint32
	ID     uint32
	Status Errno
	Flags  uint32
	Meta   []byte
	Data   []byte
}

// WriteTo writes the response as a single framed, vectored message.
func (resp *Response) WriteTo(w io.Writer) (int64, error) {
	if len(resp.Meta) > MaxMetaLen || len(resp.Data) > MaxDataLen {
		return 0, ErrOversizeFrame
	}
	hdr := make([]byte, responseHeaderSize)
	totalLen := uint32(len(resp.Meta) + len(resp.Data))
	binary.LittleEndian.PutUint32(hdr[0:4], resp.Batch)
	binary.LittleEndian.PutUint32(hdr[4:8], resp.ID)
	binary.LittleEndian.PutUint32(hdr[8:12], uint32(int32(resp.Status)))
	binary.LittleEndian.PutUint32(hdr[12:16], resp.Flags)
	binary.LittleEndian.PutUint32(hdr[16:20], totalLen)
	binary.LittleEndian.PutUint32(hdr[20:24], uint32(len(resp.Meta)))
	binary.LittleEndian.PutUint32(hdr[24:28], uint32(len(resp.Data)))

	bufs := net.Buffers{hdr, resp.Meta, resp.Data}
	n, err := bufs.WriteTo(w)
	return n, err
}

// ResponseHeader is the decoded fixed portion of a response frame.
type ResponseHeader struct {
	Batch   uint32
	ID      uint32
	Status  Errno
	Flags   uint32
	MetaLen uint32
	DataLen uint32
}

// ReadResponseHeader reads and decodes only the fixed-size response
// header, leaving the body (meta+data) unread on r. Callers that cannot
// find a waiting callback slot for (Batch, ID) must still read and
// discard MetaLen+DataLen bytes to keep the stream aligned (spec.md
// §4.1's "drained silently").
func ReadResponseHeader(r io.Reader) (ResponseHeader, error) {
	hdr := make([]byte, responseHeaderSize)
	if _, err := io.ReadFull(r, hdr); err != nil {
		return ResponseHeader{}, err
	}
	h := ResponseHeader{
		Batch:  binary.LittleEndian.Uint32(hdr[0:4]),
		ID:     binary.LittleEndian.Uint32(hdr[4:8]),
		Status: Errno(int32(binary.LittleEndian.Uint32(hdr[8:12]))),
		Flags:  binary.LittleEndian.Uint32(hdr[12:16]),
	}
	_ = binary.LittleEndian.Uint32(hdr[16:20]) // total_len
	h.MetaLen = binary.LittleEndian.Uint32(hdr[20:24])
	h.DataLen = binary.LittleEndian.Uint32(hdr[24:28])
	if h.MetaLen > MaxMetaLen || h.DataLen > MaxDataLen {
		return h, ErrOversizeFrame
	}
	return h, nil
}

// DrainBody reads and discards n bytes from r, used to skip the body of a
// response whose callback slot is no longer waiting.
func DrainBody(r io.Reader, n uint32) error {
	if n == 0 {
		return nil
	}
	_, err := io.CopyN(io.Discard, r, int64(n))
	return err
}
