package detect

// Config holds the tunable thresholds and weights of the detectors.
type Config struct {
	// Both thresholds are exclusive: a witness is flagged above ProvaEmprestadaMin
	// testimonies and alerted when the top-venue share is above ConcentracaoMin.
	ProvaEmprestadaMin int     `yaml:"prova_emprestada_min" json:"prova_emprestada_min" validate:"gte=1"`
	ConcentracaoMin    float64 `yaml:"concentracao_min" json:"concentracao_min" validate:"gt=0,lt=1"`
	TopComarcas        int     `yaml:"top_comarcas" json:"top_comarcas" validate:"gte=1"`
	MaxCiclo           int     `yaml:"max_ciclo" json:"max_ciclo" validate:"gte=3,lte=10"`
	SimilaridadeMin    float64 `yaml:"similaridade_min" json:"similaridade_min" validate:"gt=0,lte=1"`
	DistanciaMax       int     `yaml:"distancia_max" json:"distancia_max" validate:"gte=0"`
	JanelaTemporalDias int     `yaml:"janela_temporal_dias" json:"janela_temporal_dias" validate:"gte=0"`
	Pesos              Pesos   `yaml:"pesos" json:"pesos"`
}

// Pesos are the confidence weightings of each detector.
type Pesos struct {
	TrocaBase            float64 `yaml:"troca_base" json:"troca_base" validate:"gt=0,lte=1"`
	TrocaPorPar          float64 `yaml:"troca_por_par" json:"troca_por_par" validate:"gte=0,lte=1"`
	TrocaAdvogado        float64 `yaml:"troca_advogado" json:"troca_advogado" validate:"gte=0,lte=1"`
	CicloTamanho         float64 `yaml:"ciclo_tamanho" json:"ciclo_tamanho" validate:"gte=0,lte=1"`
	CicloAdvogado        float64 `yaml:"ciclo_advogado" json:"ciclo_advogado" validate:"gte=0,lte=1"`
	CicloComarca         float64 `yaml:"ciclo_comarca" json:"ciclo_comarca" validate:"gte=0,lte=1"`
	HomonimoSimilaridade float64 `yaml:"homonimo_similaridade" json:"homonimo_similaridade" validate:"gte=0,lte=1"`
	HomonimoFator        float64 `yaml:"homonimo_fator" json:"homonimo_fator" validate:"gte=0,lte=1"`
}

func DefaultConfig() Config {
	return Config{
		ProvaEmprestadaMin: 10,
		ConcentracaoMin:    0.7,
		TopComarcas:        2,
		MaxCiclo:           6,
		SimilaridadeMin:    0.88,
		DistanciaMax:       2,
		JanelaTemporalDias: 180,
		Pesos: Pesos{
			TrocaBase:            0.5,
			TrocaPorPar:          0.1,
			TrocaAdvogado:        0.25,
			CicloTamanho:         0.4,
			CicloAdvogado:        0.35,
			CicloComarca:         0.25,
			HomonimoSimilaridade: 0.6,
			HomonimoFator:        0.1,
		},
	}
}
