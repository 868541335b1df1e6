package dataset

import "fmt"

// RawRecord is an untyped input record keyed by column name, as received
// from a form, a JSON body or the command line.
type RawRecord map[string]any

// Clone returns an independent copy of the record.
func (r RawRecord) Clone() RawRecord {
	out := make(RawRecord, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Record is one patient's clinical observation with every field typed.
type Record struct {
	Age            int     `json:"Age"`
	Sex            string  `json:"Sex"`
	ChestPainType  string  `json:"ChestPainType"`
	RestingBP      int     `json:"RestingBP"`
	Cholesterol    int     `json:"Cholesterol"`
	FastingBS      int     `json:"FastingBS"`
	RestingECG     string  `json:"RestingECG"`
	MaxHR          int     `json:"MaxHR"`
	ExerciseAngina string  `json:"ExerciseAngina"`
	Oldpeak        float64 `json:"Oldpeak"`
	ST_Slope       string  `json:"ST_Slope"`
	Ca             int     `json:"Ca"`
	Thal           int     `json:"Thal"`
}

// DefaultRecord returns the record pre-filled with each field's default.
func DefaultRecord() Record {
	var rec Record
	for _, f := range fields {
		if f.IsCategorical() {
			_ = rec.Set(f.Name, 0, f.Default.(string))
			continue
		}
		switch v := f.Default.(type) {
		case int:
			_ = rec.Set(f.Name, float64(v), "")
		case float64:
			_ = rec.Set(f.Name, v, "")
		}
	}
	return rec
}

// Raw converts the record into its untyped form.
func (r Record) Raw() RawRecord {
	return RawRecord{
		"Age":            r.Age,
		"Sex":            r.Sex,
		"ChestPainType":  r.ChestPainType,
		"RestingBP":      r.RestingBP,
		"Cholesterol":    r.Cholesterol,
		"FastingBS":      r.FastingBS,
		"RestingECG":     r.RestingECG,
		"MaxHR":          r.MaxHR,
		"ExerciseAngina": r.ExerciseAngina,
		"Oldpeak":        r.Oldpeak,
		"ST_Slope":       r.ST_Slope,
		"Ca":             r.Ca,
		"Thal":           r.Thal,
	}
}

// Set assigns a coerced value to the named field. Numeric fields take
// number, categorical fields take category.
func (r *Record) Set(name string, number float64, category string) error {
	switch name {
	case "Age":
		r.Age = int(number)
	case "Sex":
		r.Sex = category
	case "ChestPainType":
		r.ChestPainType = category
	case "RestingBP":
		r.RestingBP = int(number)
	case "Cholesterol":
		r.Cholesterol = int(number)
	case "FastingBS":
		r.FastingBS = int(number)
	case "RestingECG":
		r.RestingECG = category
	case "MaxHR":
		r.MaxHR = int(number)
	case "ExerciseAngina":
		r.ExerciseAngina = category
	case "Oldpeak":
		r.Oldpeak = number
	case "ST_Slope":
		r.ST_Slope = category
	case "Ca":
		r.Ca = int(number)
	case "Thal":
		r.Thal = int(number)
	default:
		return fmt.Errorf("unknown field %q", name)
	}
	return nil
}

// ParseRecord coerces every schema field of raw into a typed record.
func ParseRecord(raw RawRecord) (Record, error) {
	var rec Record
	for _, f := range fields {
		value, ok := raw[f.Name]
		if !ok || value == nil {
			return Record{}, &MissingFeatureError{Column: f.Name}
		}
		if f.IsCategorical() {
			label, err := f.CoerceCategory(value)
			if err != nil {
				return Record{}, err
			}
			_ = rec.Set(f.Name, 0, label)
			continue
		}
		number, err := f.CoerceNumber(value)
		if err != nil {
			return Record{}, err
		}
		_ = rec.Set(f.Name, number, "")
	}
	return rec, nil
}
