package advisor

import (
	"fmt"
	"strings"
)

const systemPrompt = `Sos un asesor financiero especializado en CEDEARs del mercado argentino.
Recibís la ficha de una posición con su recomendación de venta ya calculada
(score compuesto, resultado acumulado, nivel de riesgo). Tu tarea es redactar
una justificación breve para el inversor, no cambiar la recomendación.

Reglas:
1. Un solo párrafo, máximo 80 palabras, en español.
2. Mencioná el resultado acumulado y el nivel de riesgo.
3. No inventes datos de mercado que no estén en la ficha.

Respondé estrictamente en JSON:
{"commentary": "texto del párrafo"}`

func BuildUserPrompt(brief PositionBrief) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Posición: %s", brief.Symbol)
	if brief.CompanyName != "" {
		fmt.Fprintf(&b, " (%s)", brief.CompanyName)
	}
	b.WriteString("\n")
	fmt.Fprintf(&b, "Cantidad: %.2f\n", brief.Quantity)
	fmt.Fprintf(&b, "Costo promedio: %.2f\n", brief.AverageCost)
	fmt.Fprintf(&b, "Precio actual: %.2f\n", brief.CurrentPrice)
	fmt.Fprintf(&b, "Resultado acumulado: %+.1f%%\n", brief.ProfitPct)
	fmt.Fprintf(&b, "Días en cartera: %d\n", brief.HoldingDays)
	fmt.Fprintf(&b, "Score compuesto: %.0f/100\n", brief.CompositeScore)
	fmt.Fprintf(&b, "Recomendación: %s\n", brief.Recommendation)
	fmt.Fprintf(&b, "Nivel de riesgo: %s\n", brief.RiskLevel)

	return b.String()
}
