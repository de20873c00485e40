package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"
)

const (
	frameHeaderSize = 5 // длина (uint32 LE) + флаг

	flagRaw  byte = 0
	flagZstd byte = 1

	// MaxFrameSize ограничивает размер тела кадра
	MaxFrameSize = 1 << 20
	// DefaultCompressThreshold - тела длиннее сжимаются zstd
	DefaultCompressThreshold = 512
)

var ErrFrameTooLarge = errors.New("frame exceeds max size")

// FrameCodec кодирует кадры потокового транспорта:
// [длина uint32 LE][флаг][тело]. Длина включает флаг.
// Безопасен для параллельного использования.
type FrameCodec struct {
	threshold    int
	compressor   *zstd.Encoder
	decompressor *zstd.Decoder
}

// NewFrameCodec создаёт кодек. threshold <= 0 отключает сжатие.
func NewFrameCodec(threshold int) (*FrameCodec, error) {
	fc := &FrameCodec{threshold: threshold}

	var err error
	fc.compressor, err = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("failed to create compressor: %w", err)
	}
	fc.decompressor, err = zstd.NewReader(nil, zstd.WithDecoderMaxMemory(MaxFrameSize*4))
	if err != nil {
		fc.compressor.Close()
		return nil, fmt.Errorf("failed to create decompressor: %w", err)
	}
	return fc, nil
}

// Encode формирует кадр из тела сообщения
func (fc *FrameCodec) Encode(body []byte) ([]byte, error) {
	flag := flagRaw
	if fc.threshold > 0 && len(body) > fc.threshold {
		compressed := fc.compressor.EncodeAll(body, nil)
		if len(compressed) < len(body) {
			body = compressed
			flag = flagZstd
		}
	}
	if len(body) > MaxFrameSize {
		return nil, ErrFrameTooLarge
	}

	frame := make([]byte, frameHeaderSize+len(body))
	binary.LittleEndian.PutUint32(frame[:4], uint32(len(body)+1))
	frame[4] = flag
	copy(frame[frameHeaderSize:], body)
	return frame, nil
}

// ReadFrame читает один кадр из потока и возвращает распакованное тело
func (fc *FrameCodec) ReadFrame(r io.Reader) ([]byte, error) {
	var header [frameHeaderSize]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, err
	}

	length := binary.LittleEndian.Uint32(header[:4])
	if length == 0 {
		return nil, fmt.Errorf("message too short")
	}
	if length-1 > MaxFrameSize {
		return nil, ErrFrameTooLarge
	}

	body := make([]byte, length-1)
	if _, err := io.ReadFull(r, body); err != nil {
		return nil, fmt.Errorf("message truncated: %w", err)
	}

	switch header[4] {
	case flagRaw:
		return body, nil
	case flagZstd:
		decompressed, err := fc.decompressor.DecodeAll(body, nil)
		if err != nil {
			return nil, fmt.Errorf("decompression failed: %w", err)
		}
		if len(decompressed) > MaxFrameSize {
			return nil, ErrFrameTooLarge
		}
		return decompressed, nil
	default:
		return nil, fmt.Errorf("unknown frame flag %d", header[4])
	}
}

// Close освобождает ресурсы zstd
func (fc *FrameCodec) Close() {
	fc.compressor.Close()
	fc.decompressor.Close()
}
