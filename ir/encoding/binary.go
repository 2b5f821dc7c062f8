package encoding

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"hash/crc32"

	"github.com/open-ir/policyc/ir"
)

var magic = [8]byte{'R', 'E', 'G', 'O', 'B', 'U', 'N', 'D'}

const (
	regoVersion   byte = 1
	binaryVersion byte = 1

	sectionStatic = 1
	sectionPlans  = 2
	sectionFuncs  = 3
	sectionData   = 4
)

// MarshalBinary renders bundle as the binary bundle form: a header
// followed by four length-prefixed sections. Section bodies
// (Static/Plans/Funcs) reuse this package's JSON statement/block shape
// rather than a bespoke binary statement encoding, since every field
// they need already round-trips through MarshalJSON/UnmarshalJSON; the
// Data section gets a dedicated BSON-like subtype encoding, implemented
// below with IntString(128)/FloatString(129).
func MarshalBinary(bundle *ir.Bundle) ([]byte, error) {
	staticBody, err := marshalStatic(bundle)
	if err != nil {
		return nil, err
	}
	plansBody, err := marshalPlans(bundle)
	if err != nil {
		return nil, err
	}
	funcsBody, err := marshalFuncs(bundle)
	if err != nil {
		return nil, err
	}
	dataBody := marshalData(bundle.Data)

	var payload bytes.Buffer
	writeSection(&payload, sectionStatic, staticBody)
	writeSection(&payload, sectionPlans, plansBody)
	writeSection(&payload, sectionFuncs, funcsBody)
	writeSection(&payload, sectionData, dataBody)

	fwdStatic := uint64(0)
	fwdPlans := fwdStatic + uint64(5+len(staticBody))
	fwdFuncs := fwdPlans + uint64(5+len(plansBody))
	fwdData := fwdFuncs + uint64(5+len(funcsBody))

	var out bytes.Buffer
	out.Write(magic[:])
	out.WriteByte(regoVersion)
	out.WriteByte(binaryVersion)
	out.WriteByte(byte(int8(bundle.QueryPlan)))
	out.Write(make([]byte, 5)) // reserved
	binary.Write(&out, binary.LittleEndian, uint32(bundle.LocalCount))

	crc := crc32.ChecksumIEEE(payload.Bytes())
	binary.Write(&out, binary.LittleEndian, crc)
	binary.Write(&out, binary.LittleEndian, uint64(payload.Len()))
	binary.Write(&out, binary.LittleEndian, fwdStatic)
	binary.Write(&out, binary.LittleEndian, fwdPlans)
	binary.Write(&out, binary.LittleEndian, fwdFuncs)
	binary.Write(&out, binary.LittleEndian, fwdData)
	out.Write(payload.Bytes())
	return out.Bytes(), nil
}

func writeSection(buf *bytes.Buffer, id byte, body []byte) {
	buf.WriteByte(id)
	binary.Write(buf, binary.LittleEndian, uint32(len(body)))
	buf.Write(body)
}

func readSection(r *bytes.Reader, wantID byte) ([]byte, error) {
	id, err := r.ReadByte()
	if err != nil {
		return nil, err
	}
	if id != wantID {
		return nil, fmt.Errorf("encoding: expected section id %d, got %d", wantID, id)
	}
	var n uint32
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return nil, err
	}
	body := make([]byte, n)
	if _, err := r.Read(body); err != nil {
		return nil, err
	}
	return body, nil
}

type staticSection struct {
	Strings      []string                 `json:"strings"`
	Files        []string                 `json:"files"`
	BuiltinFuncs map[string]ir.BuiltinDecl `json:"builtin_funcs"`
	Query        string                   `json:"query"`
}

func marshalStatic(b *ir.Bundle) ([]byte, error) {
	return json.Marshal(staticSection{Strings: b.Strings, Files: b.Files, BuiltinFuncs: b.BuiltinFuncs, Query: b.Query})
}

func marshalPlans(b *ir.Bundle) ([]byte, error) {
	var plans []jsonPlan
	for _, p := range b.Plans {
		jp := jsonPlan{Name: p.Name}
		for _, blk := range p.Blocks {
			jp.Blocks = append(jp.Blocks, blockToJSON(blk))
		}
		plans = append(plans, jp)
	}
	return json.Marshal(plans)
}

func marshalFuncs(b *ir.Bundle) ([]byte, error) {
	var funcs []jsonFunc
	for _, f := range b.Functions {
		jf := jsonFunc{
			Name: f.Name, Path: f.Path, Parameters: f.Parameters, Result: f.Result,
			Arity: f.Arity, Cacheable: f.Cacheable, Kind: int(f.Kind),
		}
		for _, blk := range f.Blocks {
			jf.Blocks = append(jf.Blocks, blockToJSON(blk))
		}
		if f.Default != nil {
			db := blockToJSON(f.Default)
			jf.Default = &db
		}
		funcs = append(funcs, jf)
	}
	return json.Marshal(funcs)
}

// UnmarshalBinary parses this module's binary form, verifying the
// magic, versions, and CRC32 before trusting the payload.
func UnmarshalBinary(data []byte) (*ir.Bundle, error) {
	if len(data) < 8+4+1+4+8+32 {
		return nil, fmt.Errorf("encoding: binary bundle too short")
	}
	r := bytes.NewReader(data)
	var gotMagic [8]byte
	r.Read(gotMagic[:])
	if gotMagic != magic {
		return nil, fmt.Errorf("encoding: invalid_argument: bad magic")
	}
	var vRego, vBin byte
	var queryPlanByte byte
	readByte := func() byte { b, _ := r.ReadByte(); return b }
	vRego = readByte()
	vBin = readByte()
	queryPlanByte = readByte()
	if vRego != regoVersion || vBin != binaryVersion {
		return nil, fmt.Errorf("encoding: invalid_argument: unsupported version")
	}
	r.Seek(5, 1) // reserved
	var localCount uint32
	binary.Read(r, binary.LittleEndian, &localCount)
	var crc uint32
	binary.Read(r, binary.LittleEndian, &crc)
	var payloadSize uint64
	binary.Read(r, binary.LittleEndian, &payloadSize)
	var fwdStatic, fwdPlans, fwdFuncs, fwdData uint64
	binary.Read(r, binary.LittleEndian, &fwdStatic)
	binary.Read(r, binary.LittleEndian, &fwdPlans)
	binary.Read(r, binary.LittleEndian, &fwdFuncs)
	binary.Read(r, binary.LittleEndian, &fwdData)
	_ = fwdStatic
	_ = fwdPlans
	_ = fwdFuncs
	_ = fwdData

	payload := make([]byte, payloadSize)
	if _, err := r.Read(payload); err != nil {
		return nil, fmt.Errorf("encoding: truncated payload: %w", err)
	}
	if crc32.ChecksumIEEE(payload) != crc {
		return nil, fmt.Errorf("encoding: invalid_argument: crc32 mismatch")
	}

	pr := bytes.NewReader(payload)
	staticBody, err := readSection(pr, sectionStatic)
	if err != nil {
		return nil, err
	}
	plansBody, err := readSection(pr, sectionPlans)
	if err != nil {
		return nil, err
	}
	funcsBody, err := readSection(pr, sectionFuncs)
	if err != nil {
		return nil, err
	}
	dataBody, err := readSection(pr, sectionData)
	if err != nil {
		return nil, err
	}

	b := ir.NewBundle()
	b.LocalCount = int(localCount)
	b.QueryPlan = int(int8(queryPlanByte))

	var static staticSection
	if err := json.Unmarshal(staticBody, &static); err != nil {
		return nil, err
	}
	b.Strings, b.Files, b.Query = static.Strings, static.Files, static.Query
	if static.BuiltinFuncs != nil {
		b.BuiltinFuncs = static.BuiltinFuncs
	}

	var plans []jsonPlan
	if err := json.Unmarshal(plansBody, &plans); err != nil {
		return nil, err
	}
	for _, jp := range plans {
		p := &ir.Plan{Name: jp.Name}
		for _, jb := range jp.Blocks {
			blk, err := blockFromJSON(jb)
			if err != nil {
				return nil, err
			}
			p.Blocks = append(p.Blocks, blk)
		}
		b.NameToPlan[p.Name] = len(b.Plans)
		b.Plans = append(b.Plans, p)
	}

	var funcs []jsonFunc
	if err := json.Unmarshal(funcsBody, &funcs); err != nil {
		return nil, err
	}
	for _, jf := range funcs {
		f := &ir.Function{
			Name: jf.Name, Path: jf.Path, Parameters: jf.Parameters, Result: jf.Result,
			Arity: jf.Arity, Cacheable: jf.Cacheable, Kind: ir.FuncKind(jf.Kind),
		}
		for _, jb := range jf.Blocks {
			blk, err := blockFromJSON(jb)
			if err != nil {
				return nil, err
			}
			f.Blocks = append(f.Blocks, blk)
		}
		if jf.Default != nil {
			blk, err := blockFromJSON(*jf.Default)
			if err != nil {
				return nil, err
			}
			f.Default = blk
		}
		b.NameToFunc[f.Name] = len(b.Functions)
		b.Functions = append(b.Functions, f)
	}

	data, err := unmarshalData(dataBody)
	if err != nil {
		return nil, err
	}
	b.Data = data
	return b, nil
}
