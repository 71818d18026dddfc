// Package stores 提供交付中心编号到门店名称的映射
package stores

// Label 查询交付中心名称，未知编号返回 "N/A"
func Label(id int64) string {
	if name, ok := labels[id]; ok {
		return name
	}
	return "N/A"
}

var labels = map[int64]string{
	// Austria
	436108: "Dornbirn Mühlebach Pop Up",
	18438:  "Graz Kalsdorf",
	2938:   "Innsbruck",
	8730:   "Klagenfurt",
	14839:  "Linz",
	9340:   "Wien",
	18435:  "Salzburg",

	// Belgium
	32061: "Awans",
	14852: "Brugge",

	// Czech Republic
	14499: "Praha",

	// Denmark
	301419: "Aalborg Storcenter",
	436102: "HerningCentret Pop Up",

	// Finland
	438603: "Espo Pop Up",
	9118:   "Turku",
	26258:  "Vantaa Petikko",

	// France
	446007:  "Boutique éphémère Tesla Nice Cap3000",
	26558:   "Centre Tesla Aix-Marseille",
	30673:   "Rennes Pacé",
	26278:   "Rouen Store",
	413853:  "Tesla Bayonne",
	407259:  "Tesla Paris St-Ouen",
	4004152: "Toulon Delivery Hub",
	34251:   "Valenton Delivery Hub",

	// Germany
	3693:   "Augsburg Gersthofen",
	9194:   "Berlin - Mall of Berlin",
	18426:  "Berlin Reinickendorf",
	9556:   "Berlin Schönefeld",
	16302:  "Berlin Schönefeld Delivery Hub",
	25762:  "Braunschweig Ölper",
	10512:  "Bremen Ottersberg",
	9467:   "Dortmund Holzwickede",
	399978: "Dortmund Innenstadt-Nord",
	14848:  "Dresden Kesselsdorf",
	13495:  "Duisburg Obermeiderich",
	14845:  "Düsseldorf Lierenfeld",
	439754: "Flensburg Gallerie Pop Up",
	20906:  "Frankfurt Ostend",
	9093:   "Freiburg Gundelfingen",
	28719:  "Fürth Hardhöhe",
	28725:  "Gießen An der Automeile",
	4225:   "Hamburg Wandsbek",
	3951:   "Hannover Wülfel",
	438015: "Heidelberg Altstadt Pop Up",
	3692:   "Heilbronn Sontheim",
	18430:  "Ingolstadt Oberhaunstadt",
	3690:   "Karlsruhe Rintheim",
	9095:   "Kiel Gettorf",
	18422:  "Koblenz Mülheim-Kärlich",
	2841:   "Köln Mülheim",
	20823:  "Magdeburg Großer Silberberg",
	1501:   "Mannheim Friedrichsfeld",
	2614:   "München Freiham",
	18423:  "München Parsdorf",
	15929:  "Neu-Ulm Schwaighofen",
	1250:   "Nürnberg St. Jobst",
	439780: "Rosenheim Innenstadt Pop Up",
	9098:   "Rostock Nienhagen",
	26292:  "Saarbrücken Brebach-Fechingen",
	27044:  "Stuttgart Holzgerlingen Sales, Used Car & Delivery Center",
	28717:  "Stuttgart Weinstadt",

	// Hungary
	12240: "Tesla Center Budapest",

	// Italy
	406212: "Bolzano",
	424509: "Milano-Merlata Bloom Pop Up",

	// Netherlands
	714:    "Tilburg-Asteriastraat",
	415466: "Zeeland - Goes",

	// Norway
	26253: "Bodø",
	26256: "Oslo-Ski",

	// Poland
	424807: "Tesla Center Katowice",
	437313: "Tesla Center Poznań",
	155134: "Tesla Center Warszawa",

	// Romania
	444154: "Pop Up Cluj",
	433906: "Tesla Timișoara Pop Up",

	// Spain
	36156:   "Barcelona",
	21086:   "Bilbao",
	8675:    "Madrid",
	14704:   "Málaga",
	4001206: "Mallorca",
	8680:    "Sevilla",
	35032:   "Valladolid Pop Up",
	58521:   "Valencia",
	407764:  "Vigo",

	// Sweden
	9120:   "10 Mogölsvägen Jönköping",
	413954: "1 Säljarevägen Örebro",

	// Switzerland
	481:    "Basel Möhlin",
	918:    "Basel St. Alban",
	442271: "Chur Landquart Pop Up",
	26458:  "Geneva",
	298:    "Geneva Meyrin",
	9554:   "Lausanne Bussigny",
	1425:   "Lausanne Le Flon",
	439823: "Schaffhausen Neuhausen Pop Up",
	1340:   "St. Gallen",
	505:    "Zürich Pelikanstrasse",
	1257:   "Zürich Schlieren",
	236:    "Zürich Winterthur",

	// Turkey
	425125: "Tesla Armada AVM",
	445210: "Tesla Ferko Line",
	449153: "Tesla Istanbul Meydan AVM",
	451952: "Tesla İstinyePark İzmir",
	410805: "Tesla Ankara Delivery Hub",
	442359: "Tesla Delivery Istanbul",
	460569: "Tesla Delivery Gaziemir Izmir",

	// UK
	14843:  "St Albans",
	58510:  "Tesla Centre Bicester",
	36192:  "Tesla Centre Manchester Central",
	17107:  "Tesla Centre Milton Keynes",
	14754:  "Tesla Centre Reading",
	334993: "Tesla Centre Solihull",
	400821: "Tesla Centre Wolverhampton",
	1039:   "Tesla Certified Pre-Owned Centre Bristol",
}
