package fields

// DefaultSynonyms is the built-in header vocabulary.
func DefaultSynonyms() SynonymTable {
	return SynonymTable{
		SheetProcesso: {
			CNJ:                {"CNJ", "Número do Processo", "Numero do Processo", "numero_processo", "Processo", "Nº Processo"},
			UF:                 {"UF", "Estado"},
			Comarca:            {"Comarca", "Cidade", "Foro"},
			Vara:               {"Vara", "Órgão Julgador", "orgao_julgador", "Tribunal"},
			Fase:               {"Fase", "Fase Processual"},
			Status:             {"Status", "Situação", "Situacao"},
			DataAudiencia:      {"Data Audiência", "Data da Audiência", "Audiência", "data_da_audiencia"},
			Observacoes:        {"Observações", "Obs", "Notas"},
			Reclamante:         {"Reclamante", "Autor", "Nome do Reclamante", "reclamante_nome"},
			Reclamada:          {"Reclamada", "Réu", "Empresa", "Reclamado"},
			AdvogadosAtivo:     {"Advogados Polo Ativo", "Advogados Ativo", "Advogados", "Advogado", "advogados_polo_ativo"},
			TestemunhasAtivo:   {"Testemunhas Polo Ativo", "Testemunhas Ativo", "testemunhas_polo_ativo"},
			TestemunhasPassivo: {"Testemunhas Polo Passivo", "Testemunhas Passivo", "testemunhas_polo_passivo"},
			TodasTestemunhas:   {"Todas Testemunhas", "Testemunhas", "Lista de Testemunhas", "todas_as_testemunhas"},
		},
		SheetTestemunha: {
			NomeTestemunha:     {"Nome", "Testemunha", "Nome da Testemunha", "nome"},
			QtdDepoimentos:     {"Quantidade de Depoimentos", "Qtd Depoimentos", "Depoimentos", "qtd_depoimentos_total"},
			CNJsComoTestemunha: {"CNJs", "Processos", "CNJs como Testemunha", "processos_como_testemunha"},
			CNJsComoReclamante: {"CNJs como Reclamante", "Processos como Reclamante", "processos_como_reclamante"},
			Reclamante:         {"Reclamante"},
			Reclamada:          {"Reclamada"},
		},
	}
}

// DefaultRequired lists the fields each sheet must carry.
func DefaultRequired() RequiredTable {
	return RequiredTable{
		SheetProcesso:   {CNJ, UF, Comarca, Reclamante, Reclamada, AdvogadosAtivo, TodasTestemunhas},
		SheetTestemunha: {NomeTestemunha, QtdDepoimentos, CNJsComoTestemunha},
	}
}
