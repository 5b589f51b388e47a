// ABOUTME: Multi-codec PCM decoding for asset audio
// ABOUTME: Decodes WAV, MP3, FLAC, Ogg Vorbis, and Opus bytes to float32 buffers
package loader

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
	mp3 "github.com/hajimehoshi/go-mp3"
	"github.com/jfreymuth/oggvorbis"
	"github.com/mewkiz/flac"
	opus "gopkg.in/hraban/opus.v2"

	"github.com/cutplane/playback-go/internal/audio"
	"github.com/cutplane/playback-go/internal/timeline"
)

// codecFor resolves the codec tag for an asset, sniffing the URI
// extension when the record doesn't carry one.
func codecFor(asset timeline.Asset) string {
	if asset.Codec != "" {
		return asset.Codec
	}

	switch strings.ToLower(filepath.Ext(asset.URI)) {
	case ".wav", ".wave":
		return "wav"
	case ".mp3":
		return "mp3"
	case ".flac":
		return "flac"
	case ".ogg", ".oga":
		return "vorbis"
	case ".opus":
		return "opus"
	}
	return ""
}

func decode(data []byte, codec string) (*audio.Buffer, error) {
	switch codec {
	case "wav":
		return decodeWAV(data)
	case "mp3":
		return decodeMP3(data)
	case "flac":
		return decodeFLAC(data)
	case "vorbis", "ogg":
		return decodeVorbis(data)
	case "opus":
		return decodeOpus(data)
	default:
		return nil, fmt.Errorf("unsupported codec: %q", codec)
	}
}

// decodeWAV decodes a complete WAV file via go-audio
func decodeWAV(data []byte) (*audio.Buffer, error) {
	dec := wav.NewDecoder(bytes.NewReader(data))
	if !dec.IsValidFile() {
		return nil, fmt.Errorf("not a valid WAV file")
	}

	intBuf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("wav decode: %w", err)
	}

	return &audio.Buffer{
		Format: audio.Format{
			SampleRate: intBuf.Format.SampleRate,
			Channels:   intBuf.Format.NumChannels,
		},
		Samples: normalizeInts(intBuf, int(dec.BitDepth)),
	}, nil
}

// normalizeInts converts go-audio integer PCM to float32 in [-1, 1]
func normalizeInts(buf *goaudio.IntBuffer, bitDepth int) []float32 {
	if bitDepth <= 0 {
		bitDepth = 16
	}
	maxVal := float32(int64(1) << (bitDepth - 1))

	samples := make([]float32, len(buf.Data))
	for i, s := range buf.Data {
		samples[i] = float32(s) / maxVal
	}
	return samples
}

// decodeMP3 decodes a complete MP3 file. go-mp3 always outputs
// 16-bit stereo at the source sample rate.
func decodeMP3(data []byte) (*audio.Buffer, error) {
	dec, err := mp3.NewDecoder(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("mp3 decode: %w", err)
	}

	raw, err := io.ReadAll(dec)
	if err != nil {
		return nil, fmt.Errorf("mp3 read: %w", err)
	}

	samples := make([]float32, len(raw)/2)
	for i := range samples {
		s := int16(binary.LittleEndian.Uint16(raw[i*2:]))
		samples[i] = float32(s) / 32768.0
	}

	return &audio.Buffer{
		Format:  audio.Format{SampleRate: dec.SampleRate(), Channels: 2},
		Samples: samples,
	}, nil
}

// decodeFLAC decodes a complete FLAC file frame by frame via mewkiz/flac
func decodeFLAC(data []byte) (*audio.Buffer, error) {
	stream, err := flac.New(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("flac decode: %w", err)
	}
	defer stream.Close()

	channels := int(stream.Info.NChannels)
	bitDepth := int(stream.Info.BitsPerSample)
	maxVal := float32(int64(1) << (bitDepth - 1))

	var samples []float32
	for {
		frame, err := stream.ParseNext()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("flac frame: %w", err)
		}

		for i := 0; i < int(frame.BlockSize); i++ {
			for ch := 0; ch < channels; ch++ {
				samples = append(samples, float32(frame.Subframes[ch].Samples[i])/maxVal)
			}
		}
	}

	return &audio.Buffer{
		Format:  audio.Format{SampleRate: int(stream.Info.SampleRate), Channels: channels},
		Samples: samples,
	}, nil
}

// decodeVorbis decodes a complete Ogg Vorbis file
func decodeVorbis(data []byte) (*audio.Buffer, error) {
	samples, format, err := oggvorbis.ReadAll(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("vorbis decode: %w", err)
	}

	return &audio.Buffer{
		Format:  audio.Format{SampleRate: format.SampleRate, Channels: format.Channels},
		Samples: samples,
	}, nil
}

// decodeOpus decodes a complete Ogg Opus file. Opus always decodes at
// 48kHz; ReadFloat32 returns samples per channel with the buffer
// interleaved at the stream's native channel count, which the Stream
// type doesn't expose, so it is read from the OpusHead header instead.
func decodeOpus(data []byte) (*audio.Buffer, error) {
	stream, err := opus.NewStream(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("opus decode: %w", err)
	}
	defer stream.Close()

	channels := opusChannelCount(data)
	var samples []float32
	pcm := make([]float32, 5760*channels)
	for {
		n, err := stream.ReadFloat32(pcm)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("opus read: %w", err)
		}
		samples = append(samples, pcm[:n*channels]...)
	}

	return &audio.Buffer{
		Format:  audio.Format{SampleRate: 48000, Channels: channels},
		Samples: samples,
	}, nil
}

// opusChannelCount reads the output channel count from the OpusHead
// identification packet (byte 9, per RFC 7845 section 5.1). The packet
// sits in the first Ogg page, so a plain scan finds it. Falls back to
// stereo when the header is absent or carries an unusable count.
func opusChannelCount(data []byte) int {
	idx := bytes.Index(data, []byte("OpusHead"))
	if idx < 0 || idx+9 >= len(data) {
		return 2
	}
	ch := int(data[idx+9])
	if ch < 1 || ch > 8 {
		return 2
	}
	return ch
}
