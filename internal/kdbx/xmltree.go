// SPDX-License-Identifier: Apache-2.0

package kdbx

import (
	"encoding/base64"
	"encoding/xml"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/keepctl/keepctl/internal/kperr"
	"github.com/keepctl/keepctl/internal/model"
)

// The XML schema below mirrors spec §4.3's document shape:
// <KeePassFile><Meta>...</Meta><Root><Group>...<DeletedObjects>...
// Timestamps are encoded as RFC3339Nano text rather than KeePass's native
// base64 .NET-ticks encoding: the spec fixes the cipher/header/block-
// stream format bit-exactly but leaves the XML tree's own field encoding
// to the implementation, and round-trip fidelity (not byte-for-byte
// compatibility with another KeePass implementation's XML) is what §8
// actually tests.

type xmlDoc struct {
	XMLName xml.Name  `xml:"KeePassFile"`
	Meta    xmlMeta   `xml:"Meta"`
	Root    xmlRoot   `xml:"Root"`
}

type xmlRoot struct {
	Group          xmlGroup           `xml:"Group"`
	DeletedObjects []xmlDeletedObject `xml:"DeletedObjects>DeletedObject"`
}

type xmlMeta struct {
	Generator         string              `xml:"Generator"`
	DatabaseName      string              `xml:"DatabaseName"`
	DatabaseDescription string            `xml:"DatabaseDescription"`
	RecycleBinEnabled bool                `xml:"RecycleBinEnabled"`
	RecycleBinUUID    string              `xml:"RecycleBinUUID"`
	RecycleBinChanged string              `xml:"RecycleBinChanged"`
	HistoryMaxItems   int                 `xml:"HistoryMaxItems"`
	HistoryMaxSize    int64               `xml:"HistoryMaxSize"`
	LastSelectedGroup string              `xml:"LastSelectedGroup"`
	LastTopVisibleGroup string            `xml:"LastTopVisibleGroup"`
	LastModified      string              `xml:"LastModified"`
	CustomData        []xmlCustomDataItem `xml:"CustomData>Item"`
}

type xmlCustomDataItem struct {
	Key          string `xml:"Key"`
	Value        string `xml:"Value"`
	LastModified string `xml:"LastModificationTime"`
}

type xmlTimes struct {
	CreationTime         string `xml:"CreationTime"`
	LastModificationTime string `xml:"LastModificationTime"`
	LastAccessTime       string `xml:"LastAccessTime"`
	ExpiryTime           string `xml:"ExpiryTime"`
	Expires              bool   `xml:"Expires"`
	UsageCount           int    `xml:"UsageCount"`
	LocationChanged      string `xml:"LocationChanged"`
}

type xmlGroup struct {
	UUID                    string              `xml:"UUID"`
	Name                    string              `xml:"Name"`
	Notes                   string              `xml:"Notes"`
	IconID                  int                 `xml:"IconID"`
	CustomIconUUID          string              `xml:"CustomIconUUID,omitempty"`
	Times                   xmlTimes            `xml:"Times"`
	IsExpanded              bool                `xml:"IsExpanded"`
	DefaultAutoTypeSequence string              `xml:"DefaultAutoTypeSequence"`
	EnableAutoType          int                 `xml:"EnableAutoType"`
	EnableSearching         int                 `xml:"EnableSearching"`
	Inherit                 int                 `xml:"Inherit"`
	MergeMode               int                 `xml:"MergeMode"`
	LastTopVisibleEntry     string              `xml:"LastTopVisibleEntry,omitempty"`
	CustomData              []xmlCustomDataItem `xml:"CustomData>Item"`
	Groups                  []xmlGroup          `xml:"Group"`
	Entries                 []xmlEntry          `xml:"Entry"`
}

type xmlString struct {
	Key       string `xml:"Key"`
	Value     string `xml:"Value"`
	Protected bool   `xml:"-"`
}

// xmlStringXML is the literal wire shape: Value carries a Protected
// attribute instead of it living on the outer String element.
type xmlStringXML struct {
	Key   string `xml:"Key"`
	Value struct {
		Protected string `xml:"Protected,attr,omitempty"`
		Text      string `xml:",chardata"`
	} `xml:"Value"`
}

type xmlBinaryRef struct {
	Key   string `xml:"Key"`
	Value struct {
		Ref string `xml:"Ref,attr"`
	} `xml:"Value"`
}

type xmlAutoTypeAssociation struct {
	Window   string `xml:"Window"`
	Sequence string `xml:"KeystrokeSequence"`
}

type xmlAutoType struct {
	Enabled                 bool                     `xml:"Enabled"`
	DefaultSequence         string                   `xml:"DefaultSequence"`
	Associations            []xmlAutoTypeAssociation `xml:"Association"`
}

type xmlEntry struct {
	UUID           string         `xml:"UUID"`
	IconID         int            `xml:"IconID"`
	CustomIconUUID string         `xml:"CustomIconUUID,omitempty"`
	Times          xmlTimes       `xml:"Times"`
	Strings        []xmlStringXML `xml:"String"`
	Binaries       []xmlBinaryRef `xml:"Binary"`
	AutoType       xmlAutoType    `xml:"AutoType"`
	Tags           string         `xml:"Tags"`
	CustomData     []xmlCustomDataItem `xml:"CustomData>Item"`
	History        []xmlEntry     `xml:"History>Entry"`
}

type xmlDeletedObject struct {
	UUID         string `xml:"UUID"`
	DeletionTime string `xml:"DeletionTime"`
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func formatUUID(id uuid.UUID) string {
	if id == uuid.Nil {
		return ""
	}
	return base64.StdEncoding.EncodeToString(id[:])
}

func parseUUID(s string) uuid.UUID {
	if s == "" {
		return uuid.Nil
	}
	raw, err := base64.StdEncoding.DecodeString(s)
	if err != nil || len(raw) != 16 {
		return uuid.Nil
	}
	var id uuid.UUID
	copy(id[:], raw)
	return id
}

func toXMLTimes(t model.TimeInfo) xmlTimes {
	return xmlTimes{
		CreationTime:         formatTime(t.CreationTime),
		LastModificationTime: formatTime(t.LastModificationTime),
		LastAccessTime:       formatTime(t.LastAccessTime),
		ExpiryTime:           formatTime(t.ExpiryTime),
		Expires:              t.Expires,
		UsageCount:           int(t.UsageCount),
		LocationChanged:      formatTime(t.LocationChanged),
	}
}

func fromXMLTimes(x xmlTimes) model.TimeInfo {
	return model.TimeInfo{
		CreationTime:         parseTime(x.CreationTime),
		LastModificationTime: parseTime(x.LastModificationTime),
		LastAccessTime:       parseTime(x.LastAccessTime),
		ExpiryTime:           parseTime(x.ExpiryTime),
		Expires:              x.Expires,
		UsageCount:           uint32(x.UsageCount),
		LocationChanged:      parseTime(x.LocationChanged),
	}
}

func toXMLCustomData(cd model.CustomData) []xmlCustomDataItem {
	var out []xmlCustomDataItem
	for k, v := range cd {
		out = append(out, xmlCustomDataItem{Key: k, Value: v.Value, LastModified: formatTime(v.LastModified)})
	}
	return out
}

func fromXMLCustomData(items []xmlCustomDataItem) model.CustomData {
	cd := make(model.CustomData, len(items))
	for _, it := range items {
		cd[it.Key] = model.CustomDataItem{Value: it.Value, LastModified: parseTime(it.LastModified)}
	}
	return cd
}

// marshalXML serializes db's tree to the XML document bytes, XOR'ing
// protected string values against stream, consumed strictly in document
// order (spec §4.3's order-sensitive invariant). refByName maps each
// attachment name to its deduplicated inner-header binary index.
func marshalXML(db *model.Database, stream ProtectedStream, refByName map[string]int) ([]byte, error) {
	meta := db.Metadata()
	doc := xmlDoc{
		Meta: xmlMeta{
			Generator:           meta.Generator,
			DatabaseName:        meta.Name,
			DatabaseDescription: meta.Description,
			RecycleBinEnabled:   meta.RecycleBinEnabled,
			RecycleBinUUID:      formatUUID(meta.RecycleBinUUID),
			RecycleBinChanged:   formatTime(meta.RecycleBinChanged),
			HistoryMaxItems:     meta.HistoryMaxItems,
			HistoryMaxSize:      meta.HistoryMaxSize,
			LastSelectedGroup:   formatUUID(meta.LastSelectedGroup),
			LastTopVisibleGroup: formatUUID(meta.LastTopVisibleGroup),
			LastModified:        formatTime(meta.LastModified),
			CustomData:          toXMLCustomData(meta.CustomData),
		},
	}
	doc.Root.Group = groupToXML(db.Root(), stream, refByName)
	for _, d := range db.DeletedObjects() {
		doc.Root.DeletedObjects = append(doc.Root.DeletedObjects, xmlDeletedObject{
			UUID:         formatUUID(d.UUID),
			DeletionTime: formatTime(d.DeletionTime),
		})
	}

	out, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, kperr.FormatError("marshaling XML tree: " + err.Error())
	}
	return append([]byte(xml.Header), out...), nil
}

func groupToXML(g *model.Group, stream ProtectedStream, refByName map[string]int) xmlGroup {
	xg := xmlGroup{
		UUID:                    formatUUID(g.UUID),
		Name:                    g.Name,
		Notes:                   g.Notes,
		IconID:                  g.IconID,
		CustomIconUUID:          formatUUID(g.CustomIconUUID),
		Times:                   toXMLTimes(g.Times),
		IsExpanded:              g.IsExpanded,
		DefaultAutoTypeSequence: g.DefaultAutoTypeSequence,
		EnableAutoType:          int(g.EnableAutoType),
		EnableSearching:         int(g.EnableSearching),
		Inherit:                 int(g.Inherit),
		MergeMode:               int(g.MergeMode),
		LastTopVisibleEntry:     formatUUID(g.LastTopVisibleEntry),
		CustomData:              toXMLCustomData(g.CustomData),
	}
	for _, child := range g.Groups() {
		xg.Groups = append(xg.Groups, groupToXML(child, stream, refByName))
	}
	for _, e := range g.Entries() {
		xg.Entries = append(xg.Entries, entryToXML(e, stream, refByName))
	}
	return xg
}

func entryToXML(e *model.Entry, stream ProtectedStream, refByName map[string]int) xmlEntry {
	xe := xmlEntry{
		UUID:           formatUUID(e.UUID),
		IconID:         e.IconID,
		CustomIconUUID: formatUUID(e.CustomIconUUID),
		Times:          toXMLTimes(e.Times),
		CustomData:     toXMLCustomData(e.CustomData),
	}
	for _, key := range sortedAttrKeys(e.Attributes) {
		attr := e.Attributes[key]
		s := xmlStringXML{Key: key}
		if attr.Protected {
			s.Value.Protected = "True"
			ks := stream.Next(len(attr.Value))
			s.Value.Text = base64.StdEncoding.EncodeToString(xorBytes([]byte(attr.Value), ks))
		} else {
			s.Value.Text = attr.Value
		}
		xe.Strings = append(xe.Strings, s)
	}
	for _, name := range sortedAttachmentNames(e.Attachments) {
		ref := xmlBinaryRef{Key: name}
		ref.Value.Ref = strconv.Itoa(refByName[name])
		xe.Binaries = append(xe.Binaries, ref)
	}
	xe.AutoType = xmlAutoType{
		Enabled:         e.AutoType.Enabled,
		DefaultSequence: e.AutoType.DefaultSequenceOverride,
	}
	for _, a := range e.AutoType.Associations {
		xe.AutoType.Associations = append(xe.AutoType.Associations, xmlAutoTypeAssociation{
			Window: a.WindowTitle, Sequence: a.Sequence,
		})
	}
	for _, t := range e.Tags {
		if xe.Tags != "" {
			xe.Tags += ";"
		}
		xe.Tags += t
	}
	for _, h := range e.History {
		xe.History = append(xe.History, entryToXML(h, stream, refByName))
	}
	return xe
}

// unmarshalXML parses doc bytes into a fresh model.Database, decoding
// protected strings against stream in the same document order they were
// encoded (spec §4.3's order invariant — this walk visits groups/entries/
// history in exactly the order marshalXML produced them).
func unmarshalXML(data []byte, stream ProtectedStream, binaries [][]byte) (*model.Database, error) {
	var doc xmlDoc
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, kperr.FormatError("parsing XML tree: " + err.Error())
	}

	db := model.NewDatabase()
	db.SetEmitModified(false)
	defer db.SetEmitModified(true)

	meta := db.Metadata()
	meta.Generator = doc.Meta.Generator
	meta.Name = doc.Meta.DatabaseName
	meta.Description = doc.Meta.DatabaseDescription
	meta.RecycleBinEnabled = doc.Meta.RecycleBinEnabled
	meta.RecycleBinUUID = parseUUID(doc.Meta.RecycleBinUUID)
	meta.RecycleBinChanged = parseTime(doc.Meta.RecycleBinChanged)
	meta.HistoryMaxItems = doc.Meta.HistoryMaxItems
	meta.HistoryMaxSize = doc.Meta.HistoryMaxSize
	meta.LastSelectedGroup = parseUUID(doc.Meta.LastSelectedGroup)
	meta.LastTopVisibleGroup = parseUUID(doc.Meta.LastTopVisibleGroup)
	meta.LastModified = parseTime(doc.Meta.LastModified)
	meta.CustomData = fromXMLCustomData(doc.Meta.CustomData)

	root := db.Root()
	if err := applyXMLGroup(doc.Root.Group, root, stream, binaries); err != nil {
		return nil, err
	}
	root.UUID = parseUUID(doc.Root.Group.UUID)
	root.Name = doc.Root.Group.Name

	for _, d := range doc.Root.DeletedObjects {
		db.AddTombstone(parseUUID(d.UUID), parseTime(d.DeletionTime))
	}

	return db, nil
}

// applyXMLGroup copies xg's scalar fields onto g (already attached to the
// tree as root or via AddGroup) and recursively attaches its children.
func applyXMLGroup(xg xmlGroup, g *model.Group, stream ProtectedStream, binaries [][]byte) error {
	g.Name = xg.Name
	g.Notes = xg.Notes
	g.IconID = xg.IconID
	g.CustomIconUUID = parseUUID(xg.CustomIconUUID)
	g.Times = fromXMLTimes(xg.Times)
	g.IsExpanded = xg.IsExpanded
	g.DefaultAutoTypeSequence = xg.DefaultAutoTypeSequence
	g.EnableAutoType = model.Tristate(xg.EnableAutoType)
	g.EnableSearching = model.Tristate(xg.EnableSearching)
	g.Inherit = model.Tristate(xg.Inherit)
	g.MergeMode = model.MergeMode(xg.MergeMode)
	g.LastTopVisibleEntry = parseUUID(xg.LastTopVisibleEntry)
	g.CustomData = fromXMLCustomData(xg.CustomData)

	db := g.Database()
	for _, xc := range xg.Groups {
		child := model.NewGroup(db)
		child.UUID = parseUUID(xc.UUID)
		if err := db.AddGroup(g, child); err != nil {
			return err
		}
		if err := applyXMLGroup(xc, child, stream, binaries); err != nil {
			return err
		}
	}
	for _, xe := range xg.Entries {
		e := model.NewEntry(db)
		e.UUID = parseUUID(xe.UUID)
		if err := db.AddEntry(g, e); err != nil {
			return err
		}
		applyXMLEntry(xe, e, stream, binaries)
	}
	return nil
}

func applyXMLEntry(xe xmlEntry, e *model.Entry, stream ProtectedStream, binaries [][]byte) {
	e.IconID = xe.IconID
	e.CustomIconUUID = parseUUID(xe.CustomIconUUID)
	e.Times = fromXMLTimes(xe.Times)
	e.CustomData = fromXMLCustomData(xe.CustomData)

	for _, s := range xe.Strings {
		if s.Value.Protected == "True" {
			raw, err := base64.StdEncoding.DecodeString(s.Value.Text)
			if err != nil {
				continue
			}
			ks := stream.Next(len(raw))
			e.Set(s.Key, string(xorBytes(raw, ks)), true)
		} else {
			e.Set(s.Key, s.Value.Text, false)
		}
	}
	for _, b := range xe.Binaries {
		idx, err := strconv.Atoi(b.Value.Ref)
		if err != nil || idx < 0 || idx >= len(binaries) {
			continue
		}
		e.Attachments[b.Key] = model.Attachment{Name: b.Key, Data: binaries[idx]}
	}
	e.AutoType.Enabled = xe.AutoType.Enabled
	e.AutoType.DefaultSequenceOverride = xe.AutoType.DefaultSequence
	for _, a := range xe.AutoType.Associations {
		e.AutoType.Associations = append(e.AutoType.Associations, model.AutoTypeAssociation{
			WindowTitle: a.Window, Sequence: a.Sequence,
		})
	}
	e.Tags = splitTags(xe.Tags)

	for _, xh := range xe.History {
		h := model.NewEntry(e.Database())
		h.UUID = parseUUID(xh.UUID)
		applyXMLEntry(xh, h, stream, binaries)
		e.History = append(e.History, h)
	}
}

func splitTags(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == ';' {
			out = append(out, s[start:i])
			start = i + 1
		}
	}
	out = append(out, s[start:])
	return out
}

func xorBytes(a, b []byte) []byte {
	out := make([]byte, len(a))
	for i := range a {
		out[i] = a[i] ^ b[i%len(b)]
	}
	return out
}

func sortedAttrKeys(m map[string]model.AttributeValue) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sortStrings(keys)
	return keys
}

func sortedAttachmentNames(m map[string]model.Attachment) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sortStrings(keys)
	return keys
}

func sortStrings(s []string) {
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && s[j-1] > s[j]; j-- {
			s[j-1], s[j] = s[j], s[j-1]
		}
	}
}
