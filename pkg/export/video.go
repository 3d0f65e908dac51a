package export

import (
	"fmt"
	"image"
	"image/png"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	xdraw "golang.org/x/image/draw"

	"dcmtoolbox/internal/models"
)

// DefaultFPS is the frame rate used when no explicit rate is given.
const DefaultFPS = 10

// ffmpegBinary is the encoder executable looked up on PATH.
const ffmpegBinary = "ffmpeg"

// WriteVideo encodes the series as an H.264 MP4 at outPath, one frame per
// slice in series order at the given frame rate. Frames are rendered to a
// temporary folder as PNG and handed to ffmpeg; slices whose dimensions
// differ from the first slice are resized to match so the stream stays
// valid. Requires ffmpeg on PATH.
func WriteVideo(ser *models.Series, outPath string, fps int) error {
	if ser.Len() == 0 {
		return errors.New("cannot encode a video from an empty series")
	}
	if fps < 1 {
		fps = DefaultFPS
	}

	if _, err := exec.LookPath(ffmpegBinary); err != nil {
		return errors.Wrap(err, "ffmpeg not found on PATH, video output requires it")
	}

	frameDir, err := os.MkdirTemp("", "dcmtoolbox-frames-*")
	if err != nil {
		return errors.Wrap(err, "creating frame folder")
	}
	defer os.RemoveAll(frameDir)

	// H.264 with yuv420p wants even dimensions.
	first := ser.Slices[0]
	frameW, frameH := first.Cols&^1, first.Rows&^1
	if frameW == 0 || frameH == 0 {
		return errors.Errorf("slice dimensions %dx%d too small for video", first.Cols, first.Rows)
	}

	for i, sl := range ser.Slices {
		frame := renderFrame(sl, frameW, frameH)
		path := filepath.Join(frameDir, fmt.Sprintf("frame_%06d.png", i+1))
		if err := writePNG(path, frame); err != nil {
			return err
		}
	}

	if err := os.MkdirAll(filepath.Dir(outPath), 0755); err != nil {
		return errors.Wrapf(err, "creating output folder for %s", outPath)
	}

	cmd := exec.Command(ffmpegBinary,
		"-y",
		"-framerate", fmt.Sprintf("%d", fps),
		"-i", filepath.Join(frameDir, "frame_%06d.png"),
		"-c:v", "libx264",
		"-crf", "18",
		"-preset", "slow",
		"-pix_fmt", "yuv420p",
		"-movflags", "+faststart",
		outPath,
	)
	out, err := cmd.CombinedOutput()
	if err != nil {
		logrus.WithField("output", string(out)).Debug("ffmpeg failed")
		return errors.Wrapf(err, "ffmpeg encoding failed for %s", outPath)
	}
	return nil
}

// renderFrame draws a slice into a frame of the target dimensions, resampling
// when the slice does not already match.
func renderFrame(sl *models.Slice, w, h int) image.Image {
	src := sliceImage(sl)
	if sl.Cols == w && sl.Rows == h {
		return src
	}
	dst := image.NewGray(image.Rect(0, 0, w, h))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), src, src.Bounds(), xdraw.Over, nil)
	return dst
}

func writePNG(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "creating frame file %s", path)
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return errors.Wrapf(err, "encoding frame %s", path)
	}
	return errors.Wrapf(f.Close(), "closing frame file %s", path)
}
