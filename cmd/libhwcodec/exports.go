// Command libhwcodec builds the flat C interface as a shared library:
//
//	go build -buildmode=c-shared -o libhwcodec.so ./cmd/libhwcodec
//
// Every function exists twice, with an ffmpeg_vram_ and an mfx_ prefix,
// selecting the backend family.
package main

/*
#include <stdint.h>
#include <stdlib.h>

typedef void (*EncodeCallback)(const uint8_t *data, int32_t len, int32_t key, const void *obj, int64_t pts);
typedef void (*DecodeCallback)(void *opaque, const void *obj);

typedef struct {
	int64_t luid;
} AdapterDesc;

static inline void call_encode_callback(EncodeCallback cb, const uint8_t *data, int32_t len, int32_t key, const void *obj, int64_t pts) {
	cb(data, len, key, obj, pts);
}

static inline void call_decode_callback(DecodeCallback cb, void *opaque, const void *obj) {
	cb(opaque, obj);
}
*/
import "C"

import (
	"context"
	"runtime/cgo"
	"unsafe"

	"github.com/smazurov/hwcodec/internal/hwcodec"
)

func main() {}

// newHandle stores a cgo.Handle for v in C memory so the opaque pointer handed to C never
// points into the Go heap.
func newHandle(v any) unsafe.Pointer {
	p := C.malloc(C.size_t(unsafe.Sizeof(C.uintptr_t(0))))
	*(*C.uintptr_t)(p) = C.uintptr_t(cgo.NewHandle(v))
	return p
}

func handleValue(p unsafe.Pointer) (any, bool) {
	if p == nil {
		return nil, false
	}
	return cgo.Handle(*(*C.uintptr_t)(p)).Value(), true
}

func freeHandle(p unsafe.Pointer) {
	cgo.Handle(*(*C.uintptr_t)(p)).Delete()
	C.free(p)
}

func encoderFrom(p unsafe.Pointer) *hwcodec.Encoder {
	v, ok := handleValue(p)
	if !ok {
		return nil
	}
	enc, _ := v.(*hwcodec.Encoder)
	return enc
}

func decoderFrom(p unsafe.Pointer) *hwcodec.Decoder {
	v, ok := handleValue(p)
	if !ok {
		return nil
	}
	dec, _ := v.(*hwcodec.Decoder)
	return dec
}

func newEncoder(driver hwcodec.Driver, luid C.int64_t, api, format, width, height, kbs, fps, gop C.int32_t) unsafe.Pointer {
	ec := encodeContext(driver, int64(luid), int32(api), int32(format), int32(width), int32(height), int32(kbs), int32(fps), int32(gop))
	enc, err := hwcodec.NewEncoder(ec)
	if err != nil {
		status("new_encoder", err)
		return nil
	}
	return newHandle(enc)
}

func encode(p, tex unsafe.Pointer, cb C.EncodeCallback, obj unsafe.Pointer, ms C.int64_t) C.int {
	enc := encoderFrom(p)
	if enc == nil || tex == nil || cb == nil {
		return C.int(status("encode", errNilHandle))
	}
	ec := enc.Context()
	frame := C.GoBytes(tex, C.int(hwcodec.NV12FrameSize(ec.Width, ec.Height)))
	err := enc.Encode(frame, int64(ms), func(f hwcodec.EncodeFrame) {
		data := C.CBytes(f.Data)
		defer C.free(data)
		key := C.int32_t(0)
		if f.Key {
			key = 1
		}
		C.call_encode_callback(cb, (*C.uint8_t)(data), C.int32_t(len(f.Data)), key, obj, C.int64_t(f.PTS))
	})
	return C.int(status("encode", err))
}

func destroyEncoder(p unsafe.Pointer) C.int {
	enc := encoderFrom(p)
	if enc == nil {
		return C.int(status("destroy_encoder", errNilHandle))
	}
	err := enc.Close()
	freeHandle(p)
	return C.int(status("destroy_encoder", err))
}

func setBitrate(p unsafe.Pointer, kbs C.int32_t) C.int {
	enc := encoderFrom(p)
	if enc == nil {
		return C.int(status("set_bitrate", errNilHandle))
	}
	return C.int(status("set_bitrate", enc.SetBitrate(int(kbs))))
}

func setFramerate(p unsafe.Pointer, fps C.int32_t) C.int {
	enc := encoderFrom(p)
	if enc == nil {
		return C.int(status("set_framerate", errNilHandle))
	}
	return C.int(status("set_framerate", enc.SetFramerate(int(fps))))
}

func newDecoder(driver hwcodec.Driver, luid C.int64_t, api, format C.int32_t) unsafe.Pointer {
	dec, err := hwcodec.NewDecoder(hwcodec.DecodeContext{
		Driver:     driver,
		LUID:       int64(luid),
		API:        hwcodec.API(api),
		DataFormat: hwcodec.DataFormat(format),
	})
	if err != nil {
		status("new_decoder", err)
		return nil
	}
	return newHandle(dec)
}

func decode(p unsafe.Pointer, data *C.uint8_t, length C.int, cb C.DecodeCallback, obj unsafe.Pointer) C.int {
	dec := decoderFrom(p)
	if dec == nil || data == nil || cb == nil {
		return C.int(status("decode", errNilHandle))
	}
	packet := C.GoBytes(unsafe.Pointer(data), length)
	err := dec.Decode(packet, func(f hwcodec.DecodeFrame) {
		pic := C.CBytes(f.Data)
		defer C.free(pic)
		C.call_decode_callback(cb, pic, obj)
	})
	return C.int(status("decode", err))
}

func destroyDecoder(p unsafe.Pointer) C.int {
	dec := decoderFrom(p)
	if dec == nil {
		return C.int(status("destroy_decoder", errNilHandle))
	}
	err := dec.Close()
	freeHandle(p)
	return C.int(status("destroy_decoder", err))
}

func writeDescs(descs []hwcodec.AdapterDesc, out unsafe.Pointer, maxDescs C.int32_t, outCount *C.int32_t) {
	dst := unsafe.Slice((*C.AdapterDesc)(out), int(maxDescs))
	n := copyDescs(descs, int(maxDescs), func(i int, luid int64) {
		dst[i].luid = C.int64_t(luid)
	})
	*outCount = C.int32_t(n)
}

func testEncode(driver hwcodec.Driver, out unsafe.Pointer, maxDescs C.int32_t, outCount *C.int32_t,
	luids *C.int64_t, luidCount C.int32_t, api, format, width, height, kbs, fps, gop C.int32_t) C.int {
	if out == nil || outCount == nil || maxDescs <= 0 {
		return C.int(status("test_encode", errNilHandle))
	}
	var luidRange []int64
	if luids != nil && luidCount > 0 {
		for _, l := range unsafe.Slice(luids, int(luidCount)) {
			luidRange = append(luidRange, int64(l))
		}
	}
	ec := encodeContext(driver, 0, int32(api), int32(format), int32(width), int32(height), int32(kbs), int32(fps), int32(gop))
	descs, err := hwcodec.TestEncode(context.Background(), int(maxDescs), luidRange, ec)
	if err != nil {
		*outCount = 0
		return C.int(status("test_encode", err))
	}
	writeDescs(descs, out, maxDescs, outCount)
	return statusOK
}

func testDecode(driver hwcodec.Driver, out unsafe.Pointer, maxDescs C.int32_t, outCount *C.int32_t,
	api, format C.int32_t, data *C.uint8_t, length C.int32_t) C.int {
	if out == nil || outCount == nil || maxDescs <= 0 || data == nil || length <= 0 {
		return C.int(status("test_decode", errNilHandle))
	}
	dc := hwcodec.DecodeContext{Driver: driver, API: hwcodec.API(api), DataFormat: hwcodec.DataFormat(format)}
	descs, err := hwcodec.TestDecode(context.Background(), int(maxDescs), dc, C.GoBytes(unsafe.Pointer(data), C.int(length)))
	if err != nil {
		*outCount = 0
		return C.int(status("test_decode", err))
	}
	writeDescs(descs, out, maxDescs, outCount)
	return statusOK
}

//export ffmpeg_vram_new_encoder
func ffmpeg_vram_new_encoder(_ unsafe.Pointer, luid C.int64_t, api, format, width, height, kbs, fps, gop C.int32_t) unsafe.Pointer {
	return newEncoder(hwcodec.DriverFFmpegVRAM, luid, api, format, width, height, kbs, fps, gop)
}

//export ffmpeg_vram_encode
func ffmpeg_vram_encode(encoder, tex unsafe.Pointer, cb C.EncodeCallback, obj unsafe.Pointer, ms C.int64_t) C.int {
	return encode(encoder, tex, cb, obj, ms)
}

//export ffmpeg_vram_destroy_encoder
func ffmpeg_vram_destroy_encoder(encoder unsafe.Pointer) C.int {
	return destroyEncoder(encoder)
}

//export ffmpeg_vram_set_bitrate
func ffmpeg_vram_set_bitrate(encoder unsafe.Pointer, kbs C.int32_t) C.int {
	return setBitrate(encoder, kbs)
}

//export ffmpeg_vram_set_framerate
func ffmpeg_vram_set_framerate(encoder unsafe.Pointer, fps C.int32_t) C.int {
	return setFramerate(encoder, fps)
}

//export ffmpeg_vram_new_decoder
func ffmpeg_vram_new_decoder(_ unsafe.Pointer, luid C.int64_t, api, codecID C.int32_t) unsafe.Pointer {
	return newDecoder(hwcodec.DriverFFmpegVRAM, luid, api, codecID)
}

//export ffmpeg_vram_decode
func ffmpeg_vram_decode(decoder unsafe.Pointer, data *C.uint8_t, length C.int, cb C.DecodeCallback, obj unsafe.Pointer) C.int {
	return decode(decoder, data, length, cb, obj)
}

//export ffmpeg_vram_destroy_decoder
func ffmpeg_vram_destroy_decoder(decoder unsafe.Pointer) C.int {
	return destroyDecoder(decoder)
}

//export ffmpeg_vram_test_encode
func ffmpeg_vram_test_encode(out unsafe.Pointer, maxDescs C.int32_t, outCount *C.int32_t, luids *C.int64_t, luidCount C.int32_t,
	api, format, width, height, kbs, fps, gop C.int32_t) C.int {
	return testEncode(hwcodec.DriverFFmpegVRAM, out, maxDescs, outCount, luids, luidCount, api, format, width, height, kbs, fps, gop)
}

//export ffmpeg_vram_test_decode
func ffmpeg_vram_test_decode(out unsafe.Pointer, maxDescs C.int32_t, outCount *C.int32_t, api, format C.int32_t, data *C.uint8_t, length C.int32_t) C.int {
	return testDecode(hwcodec.DriverFFmpegVRAM, out, maxDescs, outCount, api, format, data, length)
}

//export ffmpeg_vram_driver_support
func ffmpeg_vram_driver_support() C.int {
	if driverSupported(hwcodec.DriverFFmpegVRAM) {
		return statusOK
	}
	return statusError
}

//export mfx_driver_support
func mfx_driver_support() C.int {
	if driverSupported(hwcodec.DriverMFX) {
		return statusOK
	}
	return statusError
}

//export mfx_new_encoder
func mfx_new_encoder(_ unsafe.Pointer, luid C.int64_t, api, format, width, height, kbs, fps, gop C.int32_t) unsafe.Pointer {
	return newEncoder(hwcodec.DriverMFX, luid, api, format, width, height, kbs, fps, gop)
}

//export mfx_encode
func mfx_encode(encoder, tex unsafe.Pointer, cb C.EncodeCallback, obj unsafe.Pointer, ms C.int64_t) C.int {
	return encode(encoder, tex, cb, obj, ms)
}

//export mfx_destroy_encoder
func mfx_destroy_encoder(encoder unsafe.Pointer) C.int {
	return destroyEncoder(encoder)
}

//export mfx_set_bitrate
func mfx_set_bitrate(encoder unsafe.Pointer, kbs C.int32_t) C.int {
	return setBitrate(encoder, kbs)
}

//export mfx_set_framerate
func mfx_set_framerate(encoder unsafe.Pointer, fps C.int32_t) C.int {
	return setFramerate(encoder, fps)
}

//export mfx_new_decoder
func mfx_new_decoder(_ unsafe.Pointer, luid C.int64_t, api, format C.int32_t) unsafe.Pointer {
	return newDecoder(hwcodec.DriverMFX, luid, api, format)
}

//export mfx_decode
func mfx_decode(decoder unsafe.Pointer, data *C.uint8_t, length C.int, cb C.DecodeCallback, obj unsafe.Pointer) C.int {
	return decode(decoder, data, length, cb, obj)
}

//export mfx_destroy_decoder
func mfx_destroy_decoder(decoder unsafe.Pointer) C.int {
	return destroyDecoder(decoder)
}

//export mfx_test_encode
func mfx_test_encode(out unsafe.Pointer, maxDescs C.int32_t, outCount *C.int32_t, luids *C.int64_t, luidCount C.int32_t,
	api, format, width, height, kbs, fps, gop C.int32_t) C.int {
	return testEncode(hwcodec.DriverMFX, out, maxDescs, outCount, luids, luidCount, api, format, width, height, kbs, fps, gop)
}

//export mfx_test_decode
func mfx_test_decode(out unsafe.Pointer, maxDescs C.int32_t, outCount *C.int32_t, api, format C.int32_t, data *C.uint8_t, length C.int32_t) C.int {
	return testDecode(hwcodec.DriverMFX, out, maxDescs, outCount, api, format, data, length)
}
