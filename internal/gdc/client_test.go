package gdc

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/smartystreets/goconvey/convey"
)

const sampleResponse = `{
  "data": {
    "hits": [
      {
        "file_id": "f-1",
        "file_name": "a.rna_seq.star_gene_counts.tsv",
        "cases": [
          {
            "project": {"project_id": "TCGA-THCA"},
            "samples": [
              {"submitter_id": "TCGA-AA-0001-01A", "sample_type": "Primary Tumor"},
              {"submitter_id": "", "sample_type": "Primary Tumor"}
            ]
          }
        ]
      },
      {
        "file_id": "f-2",
        "file_name": "b.tsv",
        "cases": [
          {
            "project": {"project_id": "TCGA-THCA"},
            "samples": [
              {"submitter_id": "TCGA-AA-0002-11A", "sample_type": ""}
            ]
          }
        ]
      }
    ]
  }
}`

func TestResolveSite(t *testing.T) {
	convey.Convey("Given a files endpoint", t, func() {
		var gotBody []byte
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotBody, _ = io.ReadAll(r.Body)
			w.Header().Set("Content-Type", "application/json")
			io.WriteString(w, sampleResponse)
		}))
		defer srv.Close()

		logger := slog.New(slog.NewTextHandler(io.Discard, nil))
		resolver := NewResolver(srv.URL, 2000, 5*time.Second, logger)

		convey.Convey("When resolving a site", func() {
			records, err := resolver.ResolveSite(context.Background(), "Thyroid")
			convey.So(err, convey.ShouldBeNil)

			convey.Convey("Then entries missing sample id or type are skipped", func() {
				convey.So(records, convey.ShouldHaveLength, 1)
				convey.So(records[0].FileID, convey.ShouldEqual, "f-1")
				convey.So(records[0].SampleID, convey.ShouldEqual, "TCGA-AA-0001-01A")
				convey.So(records[0].SampleType, convey.ShouldEqual, "Primary Tumor")
				convey.So(records[0].ProjectID, convey.ShouldEqual, "TCGA-THCA")
			})

			convey.Convey("And the query carries the fixed filter set", func() {
				var q map[string]any
				convey.So(json.Unmarshal(gotBody, &q), convey.ShouldBeNil)
				convey.So(q["format"], convey.ShouldEqual, "JSON")
				convey.So(q["size"], convey.ShouldEqual, 2000)

				filters := q["filters"].(map[string]any)
				convey.So(filters["op"], convey.ShouldEqual, "and")
				content := filters["content"].([]any)
				convey.So(content, convey.ShouldHaveLength, 7)
			})
		})

		convey.Convey("When the endpoint returns a server error", func() {
			bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "boom", http.StatusInternalServerError)
			}))
			defer bad.Close()

			badResolver := NewResolver(bad.URL, 10, 5*time.Second, logger)
			_, err := badResolver.ResolveSite(context.Background(), "Thyroid")
			convey.So(err, convey.ShouldNotBeNil)
		})
	})
}
