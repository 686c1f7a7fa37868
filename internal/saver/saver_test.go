package saver

import (
	"encoding/csv"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/brensch/gdcmatrix/internal/aggregator"
	"github.com/smartystreets/goconvey/convey"
)

func testMatrices() *aggregator.Matrices {
	return &aggregator.Matrices{
		GeneIDs:   []string{"G1", "G2"},
		GeneNames: []string{"A", "B"},
		SampleIDs: []string{"S1", "S2"},
		TPM:       [][]float64{{1.5, 2}, {3, 4.25}},
		FPKM:      [][]float64{{10, 20}, {30, 40}},
		FPKMUQ:    [][]float64{{100, 200}, {300, 400}},
	}
}

func readAllCSV(t *testing.T, path string) [][]string {
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

func TestWriteMatrixCSV(t *testing.T) {
	convey.Convey("Given one measure matrix", t, func() {
		m := testMatrices()
		path := filepath.Join(t.TempDir(), "tumor_tpm.csv")

		convey.So(WriteMatrixCSV(path, m, m.Measures()[0]), convey.ShouldBeNil)
		rows := readAllCSV(t, path)

		convey.Convey("The header is gene_id, gene_name, then sample ids", func() {
			convey.So(rows[0], convey.ShouldResemble, []string{"gene_id", "gene_name", "S1", "S2"})
		})

		convey.Convey("Each gene row carries the per-sample values in column order", func() {
			convey.So(rows, convey.ShouldHaveLength, 3)
			convey.So(rows[1], convey.ShouldResemble, []string{"G1", "A", "1.5", "3"})
			convey.So(rows[2], convey.ShouldResemble, []string{"G2", "B", "2", "4.25"})
		})
	})
}

func TestSaveGroupMatrices(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	convey.Convey("Given finished matrices for one group", t, func() {
		m := testMatrices()
		outputDir := t.TempDir()

		paths, err := SaveGroupMatrices(outputDir, "Thyroid", "tumor", m, logger)
		convey.So(err, convey.ShouldBeNil)

		convey.Convey("A CSV and Parquet pair is written per measure under the site dir", func() {
			convey.So(paths, convey.ShouldHaveLength, 6)
			for _, measure := range []string{"tpm", "fpkm", "fpkm_uq"} {
				for _, ext := range []string{".csv", ".parquet"} {
					path := filepath.Join(outputDir, "Thyroid", "tumor_"+measure+ext)
					info, statErr := os.Stat(path)
					convey.So(statErr, convey.ShouldBeNil)
					convey.So(info.Size(), convey.ShouldBeGreaterThan, 0)
				}
			}
		})

		convey.Convey("Every measure CSV shares the same header and gene axis", func() {
			for _, measure := range []string{"tpm", "fpkm", "fpkm_uq"} {
				rows := readAllCSV(t, filepath.Join(outputDir, "Thyroid", "tumor_"+measure+".csv"))
				convey.So(rows[0], convey.ShouldResemble, []string{"gene_id", "gene_name", "S1", "S2"})
				convey.So(rows, convey.ShouldHaveLength, 3)
				convey.So(rows[1][0], convey.ShouldEqual, "G1")
				convey.So(rows[2][0], convey.ShouldEqual, "G2")
			}
		})
	})
}
