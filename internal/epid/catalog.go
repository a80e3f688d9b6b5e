package epid

import "github.com/shalu066900/pykms/internal/wire"

// product is one compiled-in catalog entry mapping an applicationId GUID
// to the EPID fields that identify it. This is intentionally a small,
// hand-picked subset (not the full GVLK product catalog, which spec.md
// explicitly excludes as a collaborator): it only maps applicationId
// values a request can actually carry to the AAAAA/DDDEEE fields a
// response must echo.
type product struct {
	platformID string // AAAAA
	skuStyle   string // DDDEEE
	name       string
}

// catalog is keyed by applicationId.String().
var catalog = map[string]product{
	// Windows 7 / Windows Server 2008 R2 volume license family.
	"55c92734-d682-4d71-983e-d6ec3f16059f": {platformID: "55041", skuStyle: "270206", name: "Windows 7 Professional VL"},
	// Windows 10 / Windows Server 2016+ volume license family.
	"e85af946-2e25-47b7-83e1-bebcebeac611": {platformID: "06401", skuStyle: "331906", name: "Windows 10 Enterprise"},
	// Office 2013.
	"85b5f61c-4f6c-4e5a-bf63-7b17a2e4d7bb": {platformID: "05426", skuStyle: "421106", name: "Office 2013 ProPlus VL"},
	// Office 2016.
	"ff6d5e88-91db-49e2-9d37-7c31dedcb1b5": {platformID: "05426", skuStyle: "452906", name: "Office 2016 ProPlus VL"},
}

// fallback is used for any applicationId not present in catalog, so the
// dispatcher can always produce a well-formed EPID.
var fallback = product{platformID: "55041", skuStyle: "270206", name: "Generic volume license product"}

func lookup(appID wire.GUID) product {
	if p, ok := catalog[appID.String()]; ok {
		return p
	}
	return fallback
}

// ProductName returns the catalog's human-readable name for appID, or a
// generic label if the id is not in the compiled-in table.
func ProductName(appID wire.GUID) string {
	return lookup(appID).name
}
