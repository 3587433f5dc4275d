package detect

import (
	"context"
	"sort"
	"strings"
)

// detectTriangulacao enumerates simple directed cycles of length 3 to
// cfg.MaxCiclo over the "testified for" relation. Each cycle is walked only
// from its smallest participant, which is also its canonical rotation, so
// rotations are never reported twice. Opposite directions are distinct
// cycles.
func detectTriangulacao(ctx context.Context, idx *Index, cfg Config) ([]Triangulacao, error) {
	maxLen := cfg.MaxCiclo
	if maxLen < 3 {
		maxLen = 3
	}

	var cycles [][]string
	steps := 0
	for _, start := range idx.People() {
		if len(idx.Successors(start)) == 0 {
			continue
		}
		path := []string{start}
		onPath := map[string]bool{start: true}

		var walk func(node string) error
		walk = func(node string) error {
			steps++
			if steps%1024 == 0 {
				if err := ctx.Err(); err != nil {
					return err
				}
			}
			for _, next := range idx.Successors(node) {
				if next == start {
					if len(path) >= 3 && isMinimalCycle(idx, path) {
						cycles = append(cycles, append([]string(nil), path...))
					}
					continue
				}
				if next < start || onPath[next] || len(path) >= maxLen {
					continue
				}
				path = append(path, next)
				onPath[next] = true
				if err := walk(next); err != nil {
					return err
				}
				path = path[:len(path)-1]
				delete(onPath, next)
			}
			return nil
		}
		if err := walk(start); err != nil {
			return nil, err
		}
	}

	out := make([]Triangulacao, 0, len(cycles))
	for _, cycle := range cycles {
		out = append(out, buildTriangulacao(idx, cycle, cfg.Pesos))
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Confianca != out[j].Confianca {
			return out[i].Confianca > out[j].Confianca
		}
		return strings.Join(out[i].Ciclo, "\x00") < strings.Join(out[j].Ciclo, "\x00")
	})
	return out, nil
}

// isMinimalCycle rejects cycles with a chord u->v that closes a shorter
// cycle of length >= 3. Edges back to the predecessor only form 2-cycles,
// which belong to the direct-exchange detector.
func isMinimalCycle(idx *Index, cycle []string) bool {
	n := len(cycle)
	if n <= 3 {
		return true
	}
	for i, u := range cycle {
		succ := cycle[(i+1)%n]
		pred := cycle[(i-1+n)%n]
		for _, v := range cycle {
			if v == u || v == succ || v == pred {
				continue
			}
			if idx.hasEdge(u, v) {
				return false
			}
		}
	}
	return true
}

func buildTriangulacao(idx *Index, cycle []string, p Pesos) Triangulacao {
	n := len(cycle)
	arestas := make([]Aresta, 0, n)
	all := make(map[string]bool)
	var shared map[string]bool
	lawyerEdges := make(map[string]int)

	for i, from := range cycle {
		to := cycle[(i+1)%n]
		keys := idx.Edge(from, to)
		arestas = append(arestas, Aresta{De: from, Para: to, CNJs: idx.formattedAll(keys)})
		for _, key := range keys {
			all[key] = true
		}
		edgeLawyers := idx.lawyerSet(keys)
		for lawyer := range edgeLawyers {
			lawyerEdges[lawyer]++
		}
		if shared == nil {
			shared = edgeLawyers
		} else {
			shared = intersect(shared, edgeLawyers)
		}
	}

	keys := sortedKeys(all)
	venues := idx.venueSet(keys)

	lawyerScore := 0.0
	if len(shared) > 0 {
		lawyerScore = 1
	} else {
		for _, count := range lawyerEdges {
			if count >= 2 {
				lawyerScore = 0.5
				break
			}
		}
	}
	venueScore := 0.0
	if len(venues) > 0 {
		venueScore = 1 / float64(len(venues))
	}
	lengthScore := 3 / float64(n)

	return Triangulacao{
		Ciclo:           append([]string(nil), cycle...),
		Tamanho:         n,
		Arestas:         arestas,
		CNJs:            idx.formattedAll(keys),
		AdvogadosComuns: sortedKeys(shared),
		Comarcas:        sortedKeys(venues),
		Confianca:       round2(p.CicloTamanho*lengthScore + p.CicloAdvogado*lawyerScore + p.CicloComarca*venueScore),
	}
}
