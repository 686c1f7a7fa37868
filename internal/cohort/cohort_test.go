package cohort

import (
	"context"
	"encoding/csv"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/brensch/gdcmatrix/internal/config"
	"github.com/brensch/gdcmatrix/internal/gdc"
	"github.com/brensch/gdcmatrix/internal/pipeline"
	"github.com/smartystreets/goconvey/convey"
)

const goodTable = "# comment line\n" +
	"gene_id\tgene_name\ttpm_unstranded\tfpkm_unstranded\tfpkm_uq_unstranded\n" +
	"N_unmapped\t\t0\t0\t0\n" +
	"G1\tA\t1.0\t2.0\t3.0\n" +
	"G2\tB\t4.0\t5.0\t6.0\n" +
	"G3\tC\t7.0\t8.0\t9.0\n"

const missingColumnTable = "gene_id\tgene_name\ttpm_unstranded\tfpkm_unstranded\n" +
	"G1\tA\t1.0\t2.0\n"

const metadataResponse = `{"data":{"hits":[
	{"file_id":"f1","file_name":"f1.tsv","cases":[{"project":{"project_id":"TCGA-TEST"},"samples":[{"submitter_id":"S1","sample_type":"Primary Tumor"}]}]},
	{"file_id":"f2","file_name":"f2.tsv","cases":[{"project":{"project_id":"TCGA-TEST"},"samples":[{"submitter_id":"S2","sample_type":"Primary Tumor"}]}]},
	{"file_id":"f3","file_name":"f3.tsv","cases":[{"project":{"project_id":"TCGA-TEST"},"samples":[{"submitter_id":"S3","sample_type":"Primary Tumor"}]}]}
]}}`

func newSiteServer() *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/files":
			io.WriteString(w, metadataResponse)
		case strings.HasPrefix(r.URL.Path, "/data/f3"):
			io.WriteString(w, missingColumnTable)
		case strings.HasPrefix(r.URL.Path, "/data/"):
			io.WriteString(w, goodTable)
		default:
			http.NotFound(w, r)
		}
	}))
}

func testConfig(t *testing.T, baseURL string) config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.FilesEndpoint = baseURL + "/files"
	cfg.DataEndpoint = baseURL + "/data"
	cfg.OutputDir = t.TempDir()
	cfg.Workers = 2
	cfg.RequestTimeout = 5 * time.Second
	cfg.SortColumns = true
	return cfg
}

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open %s: %v", path, err)
	}
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return rows
}

func TestPartitionGroups(t *testing.T) {
	convey.Convey("Given mixed sample types", t, func() {
		records := []gdc.SampleRecord{
			{SampleID: "S1", SampleType: "Primary Tumor"},
			{SampleID: "S2", SampleType: "Solid Tissue Normal"},
			{SampleID: "S3", SampleType: "Recurrent Tumor"},
			{SampleID: "S4", SampleType: "RECURRENT TUMOR"},
			{SampleID: "S5", SampleType: "Buccal Cell"},
		}

		tumor, normal := PartitionGroups(records)

		convey.Convey("Tumor and normal are matched case-insensitively by substring", func() {
			convey.So(tumor, convey.ShouldHaveLength, 3)
			convey.So(normal, convey.ShouldHaveLength, 1)
			convey.So(normal[0].SampleID, convey.ShouldEqual, "S2")
		})

		convey.Convey("Records matching neither label are excluded", func() {
			for _, rec := range append(tumor, normal...) {
				convey.So(rec.SampleID, convey.ShouldNotEqual, "S5")
			}
		})
	})
}

func TestRunSite(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	convey.Convey("Given a site with two good samples and one schema failure", t, func() {
		srv := newSiteServer()
		defer srv.Close()
		cfg := testConfig(t, srv.URL)
		runner := NewRunner(cfg, nil, logger)

		results, err := runner.RunSite(context.Background(), "Thyroid")
		convey.So(err, convey.ShouldBeNil)

		convey.Convey("The schema failure is contained, the group still completes", func() {
			tumor := results[GroupTumor]
			convey.So(tumor.Attempted, convey.ShouldEqual, 3)
			convey.So(tumor.Succeeded, convey.ShouldEqual, 2)
			convey.So(tumor.Failed, convey.ShouldEqual, 1)
			convey.So(tumor.Matrices, convey.ShouldNotBeNil)
			convey.So(tumor.Matrices.SampleIDs, convey.ShouldResemble, []string{"S1", "S2"})
			convey.So(tumor.Matrices.GeneIDs, convey.ShouldResemble, []string{"G1", "G2", "G3"})
		})

		convey.Convey("The empty normal group writes nothing", func() {
			normal := results[GroupNormal]
			convey.So(normal.Attempted, convey.ShouldEqual, 0)
			convey.So(normal.Matrices, convey.ShouldBeNil)
			convey.So(normal.Paths, convey.ShouldBeEmpty)
		})

		convey.Convey("CSV and Parquet files exist for every tumor measure", func() {
			tumor := results[GroupTumor]
			convey.So(tumor.Paths, convey.ShouldHaveLength, 6)
			for _, path := range tumor.Paths {
				info, statErr := os.Stat(path)
				convey.So(statErr, convey.ShouldBeNil)
				convey.So(info.Size(), convey.ShouldBeGreaterThan, 0)
			}
		})

		convey.Convey("The tpm CSV carries the gene axis plus one column per sample", func() {
			rows := readCSV(t, filepath.Join(cfg.OutputDir, "Thyroid", "tumor_tpm.csv"))
			convey.So(rows, convey.ShouldHaveLength, 4) // header + 3 genes
			convey.So(rows[0], convey.ShouldResemble, []string{"gene_id", "gene_name", "S1", "S2"})
			convey.So(rows[1], convey.ShouldResemble, []string{"G1", "A", "1", "1"})
			convey.So(rows[3], convey.ShouldResemble, []string{"G3", "C", "7", "7"})
		})
	})

	convey.Convey("Given a files endpoint that errors", t, func() {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "internal", http.StatusInternalServerError)
		}))
		defer srv.Close()
		cfg := testConfig(t, srv.URL)
		runner := NewRunner(cfg, nil, logger)

		convey.Convey("Resolution failure is a site failure", func() {
			results, err := runner.RunSite(context.Background(), "Thyroid")
			convey.So(err, convey.ShouldNotBeNil)
			convey.So(results, convey.ShouldBeNil)
		})
	})
}

func TestRunNotify(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	convey.Convey("Given a runner with a Notify callback", t, func() {
		srv := newSiteServer()
		defer srv.Close()
		cfg := testConfig(t, srv.URL)
		cfg.Sites = []string{"Thyroid"}
		runner := NewRunner(cfg, nil, logger)

		var mu sync.Mutex
		seen := 0
		runner.Notify = func(site, group string, _ pipeline.Outcome) {
			mu.Lock()
			defer mu.Unlock()
			seen++
		}

		convey.Convey("Run delivers one notification per attempted sample", func() {
			err := runner.Run(context.Background())
			convey.So(err, convey.ShouldBeNil)
			mu.Lock()
			defer mu.Unlock()
			convey.So(seen, convey.ShouldEqual, 3)
		})
	})
}
