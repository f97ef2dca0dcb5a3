package model

import (
	"encoding/gob"
	"io"
	"os"

	"github.com/YuminosukeSato/automl/pkg/errors"
)

// SaveModel はモデルをgob形式でファイルに保存する
//
// インターフェース型のフィールドを持つモデルは、具象型を gob.Register で
// 事前に登録しておく必要がある（各モデルパッケージの init で登録済み）。
//
//	err := model.SaveModel(pipe, "models/iris_LightGBM/model.gob")
func SaveModel(model interface{}, filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		return errors.Wrap(err, "failed to create model file")
	}
	if err := SaveModelToWriter(model, file); err != nil {
		file.Close()
		return err
	}
	return errors.Wrap(file.Close(), "failed to close model file")
}

// LoadModel はファイルからモデルを読み込む。model はポインタで渡す
func LoadModel(model interface{}, filename string) error {
	file, err := os.Open(filename)
	if err != nil {
		return errors.Wrap(err, "failed to open model file")
	}
	defer file.Close()
	return LoadModelFromReader(model, file)
}

// SaveModelToWriter はモデルをio.Writerに保存する
func SaveModelToWriter(model interface{}, w io.Writer) error {
	if err := gob.NewEncoder(w).Encode(model); err != nil {
		return errors.Wrap(err, "failed to encode model")
	}
	return nil
}

// LoadModelFromReader はio.Readerからモデルを読み込む
func LoadModelFromReader(model interface{}, r io.Reader) error {
	if err := gob.NewDecoder(r).Decode(model); err != nil {
		return errors.Wrap(err, "failed to decode model")
	}
	return nil
}
