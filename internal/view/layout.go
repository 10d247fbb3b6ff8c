package view

// NarrowWidth - ширина (в колонках), ниже которой показывается одна панель.
const NarrowWidth = 80

// Layout - какие панели видны.
type Layout struct {
	ShowList         bool
	ShowConversation bool
	Narrow           bool
}

// LayoutFor: на узком экране - либо список, либо открытый чат (список сворачивается
// после выбора чата); на широком - обе панели.
func LayoutFor(width int, selected bool) Layout {
	if width >= NarrowWidth {
		return Layout{ShowList: true, ShowConversation: true}
	}
	if selected {
		return Layout{ShowConversation: true, Narrow: true}
	}
	return Layout{ShowList: true, Narrow: true}
}
