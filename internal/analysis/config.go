package analysis

import "testemunhas/api/internal/detect"

// Pesos weight each finding type when scoring a case.
type Pesos struct {
	TrocaDireta     float64 `yaml:"troca_direta" json:"troca_direta" validate:"gte=0"`
	Triangulacao    float64 `yaml:"triangulacao" json:"triangulacao" validate:"gte=0"`
	DuploPapel      float64 `yaml:"duplo_papel" json:"duplo_papel" validate:"gte=0"`
	ProvaEmprestada float64 `yaml:"prova_emprestada" json:"prova_emprestada" validate:"gte=0"`
	Homonimos       float64 `yaml:"homonimos" json:"homonimos" validate:"gte=0"`
}

func (p Pesos) of(d detect.Detector) float64 {
	switch d {
	case detect.DetectorTrocaDireta:
		return p.TrocaDireta
	case detect.DetectorTriangulacao:
		return p.Triangulacao
	case detect.DetectorDuploPapel:
		return p.DuploPapel
	case detect.DetectorProvaEmprestada:
		return p.ProvaEmprestada
	case detect.DetectorHomonimos:
		return p.Homonimos
	}
	return 0
}

// Limiares are the minimum counts that trigger each recommendation.
type Limiares struct {
	DuploPapelAlto int `yaml:"duplo_papel_alto" json:"duplo_papel_alto" validate:"gte=1"`
	Profissionais  int `yaml:"profissionais" json:"profissionais" validate:"gte=1"`
	Triangulacoes  int `yaml:"triangulacoes" json:"triangulacoes" validate:"gte=1"`
	TrocasDiretas  int `yaml:"trocas_diretas" json:"trocas_diretas" validate:"gte=1"`
	Homonimos      int `yaml:"homonimos" json:"homonimos" validate:"gte=1"`
	Pendentes      int `yaml:"pendentes" json:"pendentes" validate:"gte=1"`
}

type Config struct {
	// Findings at or above this confidence count as high confidence.
	AltaConfianca float64  `yaml:"alta_confianca" json:"alta_confianca" validate:"gt=0,lte=1"`
	RiscoAltoMin  float64  `yaml:"risco_alto_min" json:"risco_alto_min" validate:"gtfield=RiscoMedioMin"`
	RiscoMedioMin float64  `yaml:"risco_medio_min" json:"risco_medio_min" validate:"gt=0"`
	MaxCasos      int      `yaml:"max_casos" json:"max_casos" validate:"gte=1"`
	Pesos         Pesos    `yaml:"pesos" json:"pesos"`
	Limiares      Limiares `yaml:"limiares" json:"limiares"`
}

func DefaultConfig() Config {
	return Config{
		AltaConfianca: 0.75,
		RiscoAltoMin:  6,
		RiscoMedioMin: 3,
		MaxCasos:      50,
		Pesos: Pesos{
			TrocaDireta:     3,
			Triangulacao:    4,
			DuploPapel:      3,
			ProvaEmprestada: 2,
			Homonimos:       1,
		},
		Limiares: Limiares{
			DuploPapelAlto: 1,
			Profissionais:  1,
			Triangulacoes:  1,
			TrocasDiretas:  1,
			Homonimos:      1,
			Pendentes:      1,
		},
	}
}
