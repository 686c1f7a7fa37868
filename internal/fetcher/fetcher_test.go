package fetcher

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/smartystreets/goconvey/convey"
)

func TestFetch(t *testing.T) {
	convey.Convey("Given a data endpoint", t, func() {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.URL.Path {
			case "/good-file":
				io.WriteString(w, "payload-bytes")
			case "/missing-file":
				http.NotFound(w, r)
			default:
				http.Error(w, "unexpected", http.StatusInternalServerError)
			}
		}))
		defer srv.Close()

		f := New(srv.URL, 5*time.Second)

		convey.Convey("When fetching an existing file", func() {
			data, err := f.Fetch(context.Background(), "good-file")
			convey.So(err, convey.ShouldBeNil)
			convey.So(string(data), convey.ShouldEqual, "payload-bytes")
		})

		convey.Convey("When the file does not exist", func() {
			_, err := f.Fetch(context.Background(), "missing-file")
			convey.So(err, convey.ShouldNotBeNil)

			var fetchErr *FetchError
			convey.So(errors.As(err, &fetchErr), convey.ShouldBeTrue)
			convey.So(fetchErr.FileID, convey.ShouldEqual, "missing-file")
		})

		convey.Convey("When the server hangs past the timeout", func() {
			slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				time.Sleep(200 * time.Millisecond)
			}))
			defer slow.Close()

			quick := New(slow.URL, 20*time.Millisecond)
			_, err := quick.Fetch(context.Background(), "any")

			var fetchErr *FetchError
			convey.So(errors.As(err, &fetchErr), convey.ShouldBeTrue)
		})
	})
}
