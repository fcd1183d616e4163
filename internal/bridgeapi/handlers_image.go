package bridgeapi

import (
	"bytes"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"net/http"
	"strconv"

	"golang.org/x/image/draw"

	"github.com/open-horizon-labs/hifi-bridge/internal/adapter"
)

// placeholderSVG is served when image fetch fails, so a knob's display
// loop never has to special-case a missing image (spec.md §6).
const placeholderSVG = `<svg xmlns="http://www.w3.org/2000/svg" width="120" height="120">` +
	`<rect width="100%" height="100%" fill="#222"/>` +
	`<text x="50%" y="50%" fill="#888" font-size="12" text-anchor="middle" dy=".3em">no art</text></svg>`

// handleImage implements GET /now_playing/image (spec.md §6). format
// rgb565 transcodes whatever bytes the adapter returned into packed
// 16-bit RGB565 pixels for knob displays and echoes the requested
// dimensions/format as response headers.
func (s *Server) handleImage(w http.ResponseWriter, r *http.Request) {
	zoneID := r.URL.Query().Get("zone_id")
	imageKey := r.URL.Query().Get("image_key")
	width := parseDim(r, "width")
	height := parseDim(r, "height")
	format := r.URL.Query().Get("format")

	opts := adapter.ImageOptions{Width: width, Height: height, Format: format}
	result, err := s.bus.GetImage(r.Context(), imageKey, zoneID, opts, s.callOptions(r).Sender)
	if err != nil {
		servePlaceholder(w)
		return
	}

	if format == "rgb565" {
		serveRGB565(w, result, width, height)
		return
	}

	w.Header().Set("Content-Type", result.ContentType)
	w.WriteHeader(http.StatusOK)
	w.Write(result.Bytes)
}

func servePlaceholder(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "image/svg+xml")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(placeholderSVG))
}

func serveRGB565(w http.ResponseWriter, result adapter.ImageResult, width, height int) {
	img, _, err := image.Decode(bytes.NewReader(result.Bytes))
	if err != nil {
		servePlaceholder(w)
		return
	}
	if width <= 0 {
		width = img.Bounds().Dx()
	}
	if height <= 0 {
		height = img.Bounds().Dy()
	}

	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, img.Bounds(), draw.Over, nil)

	packed := packRGB565(dst)
	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("X-Image-Width", strconv.Itoa(width))
	w.Header().Set("X-Image-Height", strconv.Itoa(height))
	w.Header().Set("X-Image-Format", "rgb565")
	w.WriteHeader(http.StatusOK)
	w.Write(packed)
}

// packRGB565 packs an RGBA image into little-endian 16-bit RGB565
// pixels (5 bits red, 6 bits green, 5 bits blue), the format small
// knob displays expect.
func packRGB565(img *image.RGBA) []byte {
	bounds := img.Bounds()
	out := make([]byte, 0, bounds.Dx()*bounds.Dy()*2)
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			r, g, b, _ := img.At(x, y).RGBA()
			r5 := uint16(r>>11) & 0x1F
			g6 := uint16(g>>10) & 0x3F
			b5 := uint16(b>>11) & 0x1F
			px := (r5 << 11) | (g6 << 5) | b5
			out = append(out, byte(px&0xFF), byte(px>>8))
		}
	}
	return out
}
