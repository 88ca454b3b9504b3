// Package imagematch implements the perceptual image comparator: it
// downloads two raid-boss images, crops the bottom 25% (which differs
// between locales by UI chrome), and scores structural similarity with
// a hand-rolled SSIM computation rather than pulling in a heavyweight
// computer-vision dependency.
package imagematch

import (
	"bytes"
	"context"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"net/http"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"

	"github.com/kestrel-raid/gbf-raidfinder/internal/errs"
	"github.com/kestrel-raid/gbf-raidfinder/internal/model"
)

// matchThreshold is the hand-tuned similarity distance below which two
// images are considered the same boss. Do not tighten below 0.25 — the
// reference corpus has at least one marginal pair scoring ~0.2x.
const matchThreshold = 0.30

// compareSize is the common square dimension candidates are normalized
// to before scoring, so differently-sized source images compare fairly.
const compareSize = 64

// Compare fetches origin's image and each candidate's image in order,
// and returns the first candidate whose distance score is strictly
// below matchThreshold. ok is false if no candidate qualifies.
func Compare(ctx context.Context, client *http.Client, origin model.RaidBossRaw, candidates []model.RaidBossRaw) (model.RaidBossRaw, bool, error) {
	originMat, err := fetchAndPrepare(ctx, client, origin.Image)
	if err != nil {
		return model.RaidBossRaw{}, false, err
	}

	for _, cand := range candidates {
		candMat, err := fetchAndPrepare(ctx, client, cand.Image)
		if err != nil {
			return model.RaidBossRaw{}, false, err
		}
		score := distance(originMat, candMat)
		if score < matchThreshold {
			return cand, true, nil
		}
	}
	return model.RaidBossRaw{}, false, nil
}

// fetchAndPrepare downloads, decodes, bottom-crops, grayscales, and
// resizes an image to a fixed comparison size.
func fetchAndPrepare(ctx context.Context, client *http.Client, url string) ([]float64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, errs.New(errs.KindImageCannotGet, url, err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, errs.New(errs.KindImageCannotGet, url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, errs.New(errs.KindImageCannotGet, resp.Status, nil)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errs.New(errs.KindBytesParseImage, url, err)
	}

	img, _, err := image.Decode(bytes.NewReader(body))
	if err != nil {
		return nil, errs.New(errs.KindImageParseBytes, url, err)
	}

	cropped := cropBottomQuarter(img)
	gray, err := toGrayMatrix(cropped)
	if err != nil {
		return nil, errs.New(errs.KindImageToImageData, url, err)
	}
	return gray, nil
}

// cropBottomQuarter retains rows [0, height*3/4), dropping the bottom
// 25% where locale-specific HUD text lives.
func cropBottomQuarter(img image.Image) image.Image {
	b := img.Bounds()
	newHeight := b.Dy() * 3 / 4
	rect := image.Rect(b.Min.X, b.Min.Y, b.Max.X, b.Min.Y+newHeight)
	sub, ok := img.(interface {
		SubImage(r image.Rectangle) image.Image
	})
	if ok {
		return sub.SubImage(rect)
	}
	// Fall back to a manual copy for decoders that don't expose SubImage.
	dst := image.NewRGBA(image.Rect(0, 0, rect.Dx(), rect.Dy()))
	draw.Draw(dst, dst.Bounds(), img, rect.Min, draw.Src)
	return dst
}

// toGrayMatrix resizes img to a fixed compareSize x compareSize square
// and returns its luminance values as a flat float64 slice in [0,255].
func toGrayMatrix(img image.Image) ([]float64, error) {
	dst := image.NewGray(image.Rect(0, 0, compareSize, compareSize))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, img.Bounds(), draw.Over, nil)

	out := make([]float64, compareSize*compareSize)
	for y := 0; y < compareSize; y++ {
		for x := 0; x < compareSize; x++ {
			out[y*compareSize+x] = float64(dst.GrayAt(x, y).Y)
		}
	}
	return out, nil
}

// distance computes 1-SSIM over the whole normalized window: lower
// means more similar.
func distance(a, b []float64) float64 {
	return 1 - ssim(a, b)
}

const (
	c1 = (0.01 * 255) * (0.01 * 255)
	c2 = (0.03 * 255) * (0.03 * 255)
)

func ssim(a, b []float64) float64 {
	n := float64(len(a))
	var meanA, meanB float64
	for i := range a {
		meanA += a[i]
		meanB += b[i]
	}
	meanA /= n
	meanB /= n

	var varA, varB, cov float64
	for i := range a {
		da := a[i] - meanA
		db := b[i] - meanB
		varA += da * da
		varB += db * db
		cov += da * db
	}
	varA /= n - 1
	varB /= n - 1
	cov /= n - 1

	numerator := (2*meanA*meanB + c1) * (2*cov + c2)
	denominator := (meanA*meanA + meanB*meanB + c1) * (varA + varB + c2)
	if denominator == 0 {
		return 1
	}
	return numerator / denominator
}
