// Package testdata generates deterministic heart-disease-like datasets for tests.
package testdata

import (
	"bytes"
	"encoding/csv"
	"math/rand"
	"os"
	"path/filepath"
	"strconv"
	"testing"
)

// Header is the column order of generated datasets.
var Header = []string{
	"Age", "Sex", "ChestPainType", "RestingBP", "Cholesterol", "FastingBS",
	"RestingECG", "MaxHR", "ExerciseAngina", "Oldpeak", "ST_Slope", "Ca", "Thal",
	"HeartDisease",
}

var (
	sexes     = []string{"M", "F"}
	chestPain = []string{"TA", "ATA", "NAP", "ASY"}
	ecgs      = []string{"Normal", "ST", "LVH"}
	anginas   = []string{"Y", "N"}
	slopes    = []string{"Up", "Flat", "Down"}
)

// Rows generates n records. Labels follow a noisy rule over the clinical
// signals so that a classifier can learn them. The first rows cycle every
// category so each label set is complete even for small n.
func Rows(n int, seed int64) [][]string {
	rnd := rand.New(rand.NewSource(seed))
	rows := make([][]string, 0, n)
	for i := 0; i < n; i++ {
		age := 30 + rnd.Intn(45)
		sex := sexes[pick(rnd, i, len(sexes))]
		cp := chestPain[pick(rnd, i, len(chestPain))]
		bp := 100 + rnd.Intn(80)
		chol := 150 + rnd.Intn(200)
		fbs := rnd.Intn(2)
		ecg := ecgs[pick(rnd, i, len(ecgs))]
		maxHR := 90 + rnd.Intn(110)
		angina := anginas[pick(rnd, i, len(anginas))]
		oldpeak := float64(rnd.Intn(40)) / 10
		slope := slopes[pick(rnd, i, len(slopes))]
		ca := rnd.Intn(4)
		thal := rnd.Intn(4)

		score := 0.0
		if age > 55 {
			score += 1
		}
		if sex == "M" {
			score += 0.5
		}
		if cp == "ASY" {
			score += 1.5
		}
		if angina == "Y" {
			score += 1.5
		}
		if slope == "Flat" || slope == "Down" {
			score += 1.5
		}
		if oldpeak >= 1.5 {
			score += 1
		}
		if maxHR < 130 {
			score += 1
		}
		score += float64(ca) * 0.5
		score += rnd.NormFloat64() * 0.75

		label := 0
		if score >= 4 {
			label = 1
		}

		rows = append(rows, []string{
			strconv.Itoa(age), sex, cp, strconv.Itoa(bp), strconv.Itoa(chol),
			strconv.Itoa(fbs), ecg, strconv.Itoa(maxHR), angina,
			strconv.FormatFloat(oldpeak, 'f', 1, 64), slope,
			strconv.Itoa(ca), strconv.Itoa(thal), strconv.Itoa(label),
		})
	}
	return rows
}

// CSV renders n generated records with a header row.
func CSV(n int, seed int64) []byte {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	_ = w.Write(Header)
	_ = w.WriteAll(Rows(n, seed))
	return buf.Bytes()
}

// WriteCSV writes a generated dataset into dir and returns its path.
func WriteCSV(t testing.TB, dir string, n int, seed int64) string {
	t.Helper()
	path := filepath.Join(dir, "heart.csv")
	if err := os.WriteFile(path, CSV(n, seed), 0o600); err != nil {
		t.Fatalf("write dataset: %v", err)
	}
	return path
}

func pick(rnd *rand.Rand, i, n int) int {
	if i < 12 {
		return i % n
	}
	return rnd.Intn(n)
}
