package decoder

import (
	"bytes"
	"compress/gzip"
	"errors"
	"io"
	"testing"

	"github.com/smartystreets/goconvey/convey"
)

func gzipBytes(t *testing.T, data []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write(data); err != nil {
		t.Fatalf("gzip write: %v", err)
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("gzip close: %v", err)
	}
	return buf.Bytes()
}

func TestOpen(t *testing.T) {
	convey.Convey("Given logical content", t, func() {
		content := []byte("gene_id\tgene_name\nENSG1\tA\n")

		convey.Convey("A plain payload passes through unchanged", func() {
			rc, err := Open(content)
			convey.So(err, convey.ShouldBeNil)
			defer rc.Close()

			got, err := io.ReadAll(rc)
			convey.So(err, convey.ShouldBeNil)
			convey.So(got, convey.ShouldResemble, content)
		})

		convey.Convey("A gzip payload decodes to identical content", func() {
			rc, err := Open(gzipBytes(t, content))
			convey.So(err, convey.ShouldBeNil)
			defer rc.Close()

			got, err := io.ReadAll(rc)
			convey.So(err, convey.ShouldBeNil)
			convey.So(got, convey.ShouldResemble, content)
		})

		convey.Convey("A truncated gzip payload fails with FrameError", func() {
			corrupt := gzipBytes(t, content)[:3]
			_, err := Open(corrupt)
			convey.So(err, convey.ShouldNotBeNil)

			var frameErr *FrameError
			convey.So(errors.As(err, &frameErr), convey.ShouldBeTrue)
		})

		convey.Convey("IsGzipped only matches the magic prefix", func() {
			convey.So(IsGzipped(gzipBytes(t, content)), convey.ShouldBeTrue)
			convey.So(IsGzipped(content), convey.ShouldBeFalse)
			convey.So(IsGzipped([]byte{0x1f}), convey.ShouldBeFalse)
		})
	})
}
