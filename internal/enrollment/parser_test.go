package enrollment

import (
	"bytes"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"
)

func TestParseRows_CSV(t *testing.T) {
	csvData := "name,dob,parent_name,address,parentPhone\n" +
		"Asha Rao,14/03/2004,Prakash Rao,12 MG Road,9876543210\n" +
		"Vikram Shetty,02/11/2003,Ramesh Shetty,4 Church Street,\n" +
		",,,,\n"

	rows, err := ParseRows(strings.NewReader(csvData), "students.csv")
	if err != nil {
		t.Fatalf("ParseRows: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("want 2 rows (blank row dropped), got %d", len(rows))
	}
	if rows[0].Get("name") != "Asha Rao" {
		t.Errorf("name = %q", rows[0].Get("name"))
	}
	// parent_name and parentPhone normalize to the same keys.
	if rows[0].Get("parentname") != "Prakash Rao" {
		t.Errorf("parent_name header not normalized: %v", rows[0])
	}
	if rows[0].Get("parentphone") != "9876543210" {
		t.Errorf("parentPhone header not normalized: %v", rows[0])
	}
}

func TestParseRows_XLSX(t *testing.T) {
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	header := []interface{}{"name", "dob", "parentName", "address"}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		t.Fatal(err)
	}
	row := []interface{}{"Asha Rao", "14/03/2004", "Prakash Rao", "12 MG Road"}
	if err := f.SetSheetRow(sheet, "A2", &row); err != nil {
		t.Fatal(err)
	}
	buf, err := f.WriteToBuffer()
	if err != nil {
		t.Fatal(err)
	}

	rows, err := ParseRows(bytes.NewReader(buf.Bytes()), "students.xlsx")
	if err != nil {
		t.Fatalf("ParseRows: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("want 1 row, got %d", len(rows))
	}
	if rows[0].Get("parentname") != "Prakash Rao" {
		t.Errorf("parentName header not normalized: %v", rows[0])
	}
}

func TestParseRows_UnsupportedFormat(t *testing.T) {
	_, err := ParseRows(strings.NewReader("x"), "students.pdf")
	if err == nil {
		t.Fatal("expected error for unsupported extension")
	}
}

func TestParseRows_ShortRecord(t *testing.T) {
	csvData := "name,dob,parent_name,address\nAsha Rao,14/03/2004\n"
	rows, err := ParseRows(strings.NewReader(csvData), "students.csv")
	if err != nil {
		t.Fatalf("ParseRows: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("want 1 row, got %d", len(rows))
	}
	if rows[0].Get("address") != "" {
		t.Errorf("missing cells should read empty, got %q", rows[0].Get("address"))
	}
}
